package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gezibash/arc-kernel"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// Operation is daemon work that is not an RPC, such as a beacon join or
// opening the mirror bus. Its duration is recorded in the RPC metrics under
// the operation name.
type Operation struct {
	ctx     context.Context
	span    trace.Span
	metrics *Metrics
	log     *slog.Logger
	name    string
	start   time.Time
}

// StartOperation opens a span named name. m and log may be nil.
func StartOperation(ctx context.Context, m *Metrics, log *slog.Logger, name string, attrs ...attribute.KeyValue) (*Operation, context.Context) {
	ctx, span := tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	if log == nil {
		log = slog.Default()
	}
	return &Operation{
		ctx:     ctx,
		span:    span,
		metrics: m,
		log:     log.With(slog.String("operation", name)),
		name:    name,
		start:   time.Now(),
	}, ctx
}

// End closes the span and returns err unchanged.
func (o *Operation) End(err error) error {
	elapsed := time.Since(o.start)
	status := "ok"
	if err != nil {
		status = "error"
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.log.WarnContext(o.ctx, "operation failed", "error", err, "elapsed", elapsed)
	} else {
		o.log.DebugContext(o.ctx, "operation done", "elapsed", elapsed)
	}
	o.span.End()
	o.metrics.observe(o.name, status, elapsed.Seconds())
	return err
}
