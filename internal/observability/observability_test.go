package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"
)

// --- Shutdown Coordinator ---

func TestShutdownCoordinatorLIFO(t *testing.T) {
	var order []int
	sc := &ShutdownCoordinator{}
	for i := 1; i <= 3; i++ {
		sc.Register(fmt.Sprintf("h%d", i), func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	if err := sc.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("expected LIFO [3,2,1], got %v", order)
	}

	// Handlers run once.
	if err := sc.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("handlers ran again: %v", order)
	}
}

func TestShutdownCoordinatorError(t *testing.T) {
	boom := errors.New("fail")
	ran := 0
	sc := &ShutdownCoordinator{}
	sc.Register("first", func(ctx context.Context) error { ran++; return nil })
	sc.Register("bad", func(ctx context.Context) error { ran++; return boom })
	sc.Register("third", func(ctx context.Context) error { ran++; return nil })

	err := sc.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Fatalf("error should name the handler: %v", err)
	}
	if ran != 3 {
		t.Fatalf("expected all 3 handlers to run, got %d", ran)
	}
}

// --- Metrics ---

func TestNewMetricsRegistersRuntimeCollectors(t *testing.T) {
	m := NewMetrics()
	m.RPCTotal.WithLabelValues("op", "ok").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"go_goroutines", "kernel_rpc_total"} {
		if !names[want] {
			t.Errorf("missing metric family %s", want)
		}
	}
}

func TestNilMetricsObserve(t *testing.T) {
	var m *Metrics
	m.observe("op", "ok", 1) // must not panic
}

// --- Logging ---

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", "json", &buf)
	logger.Info("hello", "key", "val")

	var entry map[string]any
	if err := json.NewDecoder(&buf).Decode(&entry); err != nil {
		t.Fatalf("output not valid JSON: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["key"] != "val" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestSetupLoggerAutoPicksJSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger("info", "auto", &buf).Info("auto")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected JSON for a buffer writer: %v\nraw: %s", err, buf.String())
	}
}

func TestSetupLoggerPretty(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger("info", "pretty", &buf).Info("testmsg", "svc", "sink")

	out := buf.String()
	if !strings.Contains(out, "testmsg") || !strings.Contains(out, "svc=sink") {
		t.Fatalf("unexpected pretty output: %q", out)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &m); err == nil {
		t.Fatal("expected non-JSON output for pretty format")
	}
}

func TestSetupLoggerLevels(t *testing.T) {
	tests := []struct {
		level      string
		logAt      slog.Level
		shouldShow bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelDebug, false},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelInfo, false},
		{"error", slog.LevelWarn, false},
		{"error", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.level, tt.logAt), func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(tt.level, "json", &buf)
			logger.Log(context.Background(), tt.logAt, "test")

			if got := buf.Len() > 0; got != tt.shouldShow {
				t.Fatalf("expected visible=%v got %v", tt.shouldShow, got)
			}
		})
	}
}

func TestPrettyHandlerGroupPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil)).WithGroup("bus")
	logger.Info("x", "topic", "hostess.registered")

	if !strings.Contains(buf.String(), "bus.topic=hostess.registered") {
		t.Fatalf("missing group prefix: %q", buf.String())
	}
}

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&TraceHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "traced")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["trace_id"] != traceID.String() || entry["span_id"] != spanID.String() {
		t.Fatalf("trace ids not injected: %v", entry)
	}
}

// --- gRPC interceptors ---

type mockServerStream struct {
	grpc.ServerStream
	ctx     context.Context
	sendErr error
}

func (m *mockServerStream) Context() context.Context { return m.ctx }
func (m *mockServerStream) SendMsg(any) error        { return m.sendErr }
func (m *mockServerStream) RecvMsg(any) error        { return nil }

func TestUnaryServerInterceptor(t *testing.T) {
	m := NewMetrics()
	interceptor := UnaryServerInterceptor(m)

	info := &grpc.UnaryServerInfo{FullMethod: "/hostess.v1.Hostess/Get"}
	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, grpcstatus.Error(grpccodes.NotFound, "unknown service")
	})
	if grpcstatus.Code(err) != grpccodes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	if got := testutil.ToFloat64(m.RPCTotal.WithLabelValues(info.FullMethod, "NotFound")); got != 1 {
		t.Fatalf("rpc total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(info.FullMethod, "NotFound")); got != 1 {
		t.Fatalf("errors total = %v, want 1", got)
	}
}

func TestStreamServerInterceptorCountsMessages(t *testing.T) {
	m := NewMetrics()
	interceptor := StreamServerInterceptor(m)

	info := &grpc.StreamServerInfo{FullMethod: "/hostess.v1.Hostess/Watch"}
	ss := &mockServerStream{ctx: context.Background()}

	var wrapped *wrappedStream
	err := interceptor(nil, ss, info, func(srv any, stream grpc.ServerStream) error {
		wrapped = stream.(*wrappedStream)
		_ = stream.SendMsg("a")
		_ = stream.SendMsg("b")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrapped.sent.Load() != 2 {
		t.Fatalf("sent = %d, want 2", wrapped.sent.Load())
	}
	if got := testutil.ToFloat64(m.RPCTotal.WithLabelValues(info.FullMethod, "OK")); got != 1 {
		t.Fatalf("rpc total = %v, want 1", got)
	}
}

func TestWrappedStreamSendError(t *testing.T) {
	ss := &mockServerStream{ctx: context.Background(), sendErr: errors.New("send fail")}
	w := &wrappedStream{ServerStream: ss, ctx: ss.ctx}
	if err := w.SendMsg("msg"); err == nil {
		t.Fatal("expected error")
	}
	if w.sent.Load() != 0 {
		t.Fatalf("failed send counted: %d", w.sent.Load())
	}
}

func TestExtractTraceContext(t *testing.T) {
	ctx := context.Background()
	if extractTraceContext(ctx) != ctx {
		t.Fatal("expected same context when no metadata")
	}
	md := metadata.New(map[string]string{"traceparent": "00-00000000000000000000000000000001-0000000000000001-01"})
	if extractTraceContext(metadata.NewIncomingContext(ctx, md)) == nil {
		t.Fatal("expected non-nil context")
	}
}

// --- Operation ---

func TestOperationRecordsStatus(t *testing.T) {
	m := NewMetrics()
	boom := errors.New("boom")
	op, _ := StartOperation(context.Background(), m, nil, "mirror.open")
	if err := op.End(boom); err != boom {
		t.Fatalf("End() = %v, want the error passed in", err)
	}
	op, _ = StartOperation(context.Background(), m, nil, "mirror.open")
	if err := op.End(nil); err != nil {
		t.Fatalf("End(nil) = %v", err)
	}

	if got := testutil.ToFloat64(m.RPCTotal.WithLabelValues("mirror.open", "error")); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RPCTotal.WithLabelValues("mirror.open", "ok")); got != 1 {
		t.Fatalf("ok count = %v, want 1", got)
	}
}

func TestOperationWithoutMetrics(t *testing.T) {
	op, ctx := StartOperation(context.Background(), nil, nil, "beacon.join")
	if ctx == nil {
		t.Fatal("expected a context")
	}
	_ = op.End(nil)
}

// --- Tracer provider ---

func TestInitTracerRejectsUnknownProtocol(t *testing.T) {
	_, err := InitTracer(context.Background(), TracerConfig{Endpoint: "localhost:4318", Protocol: "smoke"})
	if err == nil || !strings.Contains(err.Error(), "smoke") {
		t.Fatalf("err = %v, want unknown protocol", err)
	}
}

func TestNewResourceAttributes(t *testing.T) {
	res, err := newResource(TracerConfig{ServiceName: "hostess", ServiceVersion: "1.2.3", Instance: "brave-otter"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	want := map[attribute.Key]string{
		"service.namespace":   "arc-kernel",
		"service.name":        "hostess",
		"service.version":     "1.2.3",
		"service.instance.id": "brave-otter",
	}
	set := res.Set()
	for k, v := range want {
		got, ok := set.Value(k)
		if !ok || got.AsString() != v {
			t.Errorf("%s = %q (%v), want %q", k, got.AsString(), ok, v)
		}
	}
}

// --- New / ServeMetrics ---

func newTestObs(t *testing.T) *Observability {
	t.Helper()
	obs, err := New(context.Background(), ObsConfig{LogLevel: "error", LogFormat: "json", ServiceVersion: "0.0.1"}, io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = obs.Close(context.Background()) })
	return obs
}

func TestNewDefaultsServiceName(t *testing.T) {
	obs := newTestObs(t)
	if obs.ServiceName != "hostess" {
		t.Fatalf("service name = %q", obs.ServiceName)
	}
	if obs.Transport == nil {
		t.Fatal("transport metrics not wired")
	}
}

func TestServeMetricsEndpoints(t *testing.T) {
	obs := newTestObs(t)

	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "hostess_test_total", Help: "test"})
	if err := obs.Register(extra); err != nil {
		t.Fatalf("Register: %v", err)
	}
	extra.Inc()
	obs.Transport.Opened("tcp")

	addr, err := obs.ServeMetrics(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ServeMetrics: %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("health: %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"hostess_test_total 1", "transport_connections"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	obs := newTestObs(t)
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "dup"})
	if err := obs.Register(c); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := obs.Register(c); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
