package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "scribe"

// Span pairs an OTel span with the context that carries it.
type Span struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan opens a child span of whatever span ctx already carries.
//
//	sp := logger.StartSpan(ctx, "summary.tick")
//	defer sp.End()
//	ctx = sp.Context()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *Span {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{ctx: ctx, span: span}
}

// StartSpanFromTraceID continues a trace whose id arrived out of band, such
// as the trace_id field of an ingest stream message. An empty or malformed id
// starts a fresh trace.
func StartSpanFromTraceID(ctx context.Context, traceIDHex string, name string, opts ...trace.SpanStartOption) *Span {
	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if traceIDHex == "" || err != nil {
		return StartSpan(ctx, name, opts...)
	}

	remote := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
	return StartSpan(trace.ContextWithRemoteSpanContext(ctx, remote), name, opts...)
}

func (s *Span) Context() context.Context {
	return s.ctx
}

// End is a no-op on a zero Span.
func (s *Span) End() {
	if s.span != nil {
		s.span.End()
	}
}

// RecordError marks the span failed.
func (s *Span) RecordError(err error) {
	if s.span == nil || err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetRoom tags the span with the room it operates on.
func (s *Span) SetRoom(roomID string) {
	if s.span != nil && roomID != "" {
		s.span.SetAttributes(attribute.String("scribe.room_id", roomID))
	}
}

// TraceID returns the hex trace id, or "" when the span is not recording one.
func (s *Span) TraceID() string {
	if s.span == nil {
		return ""
	}
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
