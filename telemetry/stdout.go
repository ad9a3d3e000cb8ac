package telemetry

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewStdout creates instruments that export spans as JSON to w as soon as
// they end. The returned shutdown function flushes and releases the
// providers.
func NewStdout(w io.Writer) (*Instruments, func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	mp := sdkmetric.NewMeterProvider()

	ins, err := New(tp, mp)
	if err != nil {
		return nil, nil, errors.Join(err, tp.Shutdown(context.Background()), mp.Shutdown(context.Background()))
	}
	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
	return ins, shutdown, nil
}
