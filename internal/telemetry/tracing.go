/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry configures OpenTelemetry tracing for the monitor.
//
// Each analysis pipeline run produces one span tree:
//
//	watch.change → file.analyze → alerts.evaluate → alerts.process → notify.dispatch
//
// Custom span attributes use the `basewatch.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "basewatch/monitor"

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP gRPC exporter.
// If endpoint is empty, tracing is disabled (noop provider is used).
// Returns a shutdown function that must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		// No-op: tracing disabled
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // TLS configurable via env (OTEL_EXPORTER_OTLP_INSECURE)
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("basewatch"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartChangeSpan creates the parent span for one watched file change.
func StartChangeSpan(ctx context.Context, path, source string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "watch.change",
		trace.WithAttributes(
			attribute.String("basewatch.path", path),
			attribute.String("basewatch.source", source),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartAnalyzeSpan creates a child span for one file analysis.
func StartAnalyzeSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "file.analyze",
		trace.WithAttributes(
			attribute.String("basewatch.path", path),
		),
	)
}

// EndAnalyzeSpan enriches the analysis span with scores before ending it.
func EndAnalyzeSpan(span trace.Span, riskScore, compatScore, hits int) {
	span.SetAttributes(
		attribute.Int("basewatch.risk_score", riskScore),
		attribute.Int("basewatch.compat_score", compatScore),
		attribute.Int("basewatch.feature_hits", hits),
	)
	span.End()
}

// StartEvaluateSpan creates a child span for alert rule evaluation.
func StartEvaluateSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "alerts.evaluate",
		trace.WithAttributes(
			attribute.String("basewatch.path", path),
		),
	)
}

// StartProcessSpan creates a child span for alert dedup and escalation.
func StartProcessSpan(ctx context.Context, alertType, severity string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "alerts.process",
		trace.WithAttributes(
			attribute.String("basewatch.alert_type", alertType),
			attribute.String("basewatch.severity", severity),
		),
	)
}

// StartDispatchSpan creates a child span for notification dispatch.
func StartDispatchSpan(ctx context.Context, channel string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "notify.dispatch",
		trace.WithAttributes(
			attribute.String("basewatch.channel", channel),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndDispatchSpan records the delivery outcome before ending the span.
func EndDispatchSpan(span trace.Span, delivered bool, reason string) {
	span.SetAttributes(attribute.Bool("basewatch.delivered", delivered))
	if reason != "" {
		span.SetAttributes(attribute.String("basewatch.drop_reason", reason))
	}
	span.End()
}
