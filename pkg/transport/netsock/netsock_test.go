package netsock

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	kerrors "github.com/gezibash/arc-kernel/pkg/errors"
	"github.com/gezibash/arc-kernel/pkg/transport"
)

func echo(ctx context.Context) func(transport.Stream) {
	return func(s transport.Stream) {
		defer s.Close()
		_ = transport.Pump(ctx, s, s)
	}
}

// exchange writes n numbered payloads, half-closes, and checks the echo
// comes back in order with gap-free sequence numbers.
func exchange(t *testing.T, s transport.Stream, n int) {
	t.Helper()
	for i := range n {
		ok, err := s.Write([]byte(fmt.Sprintf("msg-%03d", i)))
		if err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
		if !ok {
			<-s.Drain()
		}
	}
	if err := s.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}

	var tr transport.SeqTracker
	i := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-s.Data():
			if !ok {
				if i != n {
					t.Fatalf("received %d chunks, want %d", i, n)
				}
				return
			}
			if want := fmt.Sprintf("msg-%03d", i); string(c.Data) != want {
				t.Fatalf("chunk %d = %q, want %q", i, c.Data, want)
			}
			if gap, dup := tr.Observe(c.Seq); gap != 0 || dup {
				t.Fatalf("chunk %d seq %d: gap=%d dup=%v", i, c.Seq, gap, dup)
			}
			i++
		case <-timeout:
			t.Fatalf("timed out after %d chunks", i)
		}
	}
}

func TestTCP_EchoWithSequence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := ListenTCP(ctx, "127.0.0.1:0", echo(ctx), transport.Options{})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer ln.Close()

	s, err := DialTCP(ctx, ClientConfig{Host: "127.0.0.1", Port: ln.Port(), Timeout: time.Second}, transport.Options{})
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer s.Close()

	exchange(t, s, 200)
}

func TestTCP_RefusedIsConnError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = DialTCP(context.Background(), ClientConfig{Host: "127.0.0.1", Port: port, Timeout: time.Second}, transport.Options{})
	if err == nil {
		t.Fatal("expected refused dial to fail")
	}
	var ce *transport.ConnError
	if !errors.As(err, &ce) || ce.Kind != KindTCP || ce.Op != "dial" {
		t.Fatalf("err = %v, want tcp dial ConnError", err)
	}
	if !errors.Is(err, transport.ErrConnection) {
		t.Fatal("expected errors.Is(err, ErrConnection)")
	}
}

func TestTCP_TimeoutMatchesErrTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := DialTCP(ctx, ClientConfig{Host: "127.0.0.1", Port: 9}, transport.Options{})
	if !errors.Is(err, kerrors.ErrTimeout) || !errors.Is(err, transport.ErrConnection) {
		t.Fatalf("err = %v, want timeout ConnError", err)
	}
}

func TestTCP_OversizedFrameIsProtocolError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lc net.ListenConfig
	raw, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer raw.Close()
	go func() {
		conn, err := raw.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var hdr [headerSize]byte
		binary.BigEndian.PutUint64(hdr[0:8], 1)
		binary.BigEndian.PutUint32(hdr[8:12], MaxFrameSize+1)
		_, _ = conn.Write(hdr[:])
		time.Sleep(time.Second)
	}()

	s, err := DialTCP(ctx, ClientConfig{Host: "127.0.0.1", Port: raw.Addr().(*net.TCPAddr).Port}, transport.Options{})
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer s.Close()

	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not fail")
	}
	if !errors.Is(s.Err(), transport.ErrProtocol) {
		t.Fatalf("Err() = %v, want protocol error", s.Err())
	}
}

func TestWS_EchoWithSequence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := ListenWS(ctx, "127.0.0.1:0", "/pipe", echo(ctx), transport.Options{})
	if err != nil {
		t.Fatalf("ListenWS: %v", err)
	}
	defer ln.Close()

	s, err := DialWS(ctx, ClientConfig{Host: "127.0.0.1", Port: ln.Port(), Path: "/pipe", Timeout: time.Second}, transport.Options{})
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer s.Close()

	exchange(t, s, 100)
}

func TestWS_RefusedIsConnError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = DialWS(context.Background(), ClientConfig{Host: "127.0.0.1", Port: port, Timeout: time.Second}, transport.Options{})
	if !errors.Is(err, transport.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestRegisteredKinds(t *testing.T) {
	_, err := transport.NewStream(context.Background(), KindTCP, nil, transport.Options{})
	if err == nil {
		t.Fatal("expected missing port to be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ln, err := ListenTCP(ctx, "127.0.0.1:0", echo(ctx), transport.Options{})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer ln.Close()

	s, err := transport.NewStream(ctx, KindTCP, map[string]string{KeyPort: fmt.Sprint(ln.Port())}, transport.Options{})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	exchange(t, s, 3)
	_ = s.Close()
}
