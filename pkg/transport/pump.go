package transport

import "context"

// Pump copies src's data into dst until src ends, ctx is canceled, or dst
// fails. It honors dst's backpressure by waiting on Drain after a false
// Write. dst is half-closed when src ends cleanly.
func Pump(ctx context.Context, dst, src Stream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-src.Data():
			if !ok {
				if err := src.Err(); err != nil {
					return err
				}
				return dst.CloseWrite()
			}
			ready, err := dst.Write(c.Data)
			if err != nil {
				return err
			}
			if ready {
				continue
			}
			select {
			case <-dst.Drain():
			case <-dst.Done():
				if err := dst.Err(); err != nil {
					return err
				}
				return ErrClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
