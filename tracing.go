package glock

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// LockTracer holds the global tracer.
type LockTracer struct {
	tracer trace.Tracer
}

var globalTracer *LockTracer

// InitializeTracing sets up tracing with a user-defined or default tracer provider.
func InitializeTracing(tp trace.TracerProvider) {
	globalTracer = &LockTracer{
		tracer: tp.Tracer(Name), // Use user-provided tracer provider
	}
}

// GetTracer returns the global Tracer instance, or a tracer from the global
// OpenTelemetry provider if InitializeTracing has not been called yet.
func GetTracer() trace.Tracer {
	if globalTracer == nil {
		return otel.GetTracerProvider().Tracer(Name)
	}
	return globalTracer.tracer
}
