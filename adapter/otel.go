// Package adapter integrates mobyhook sessions with external
// observability systems.
package adapter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/riftworks/mobyhook/api"
	"github.com/riftworks/mobyhook/pkg/moby"
)

// InstrumentedSession wraps a HostSession with OpenTelemetry spans and
// counters around the state-changing operations. Reads pass through
// untouched; per-tick update paths stay cheap.
type InstrumentedSession struct {
	inner  api.HostSession
	tracer trace.Tracer

	collections metric.Int64Counter
	resets      metric.Int64Counter
}

var _ api.HostSession = (*InstrumentedSession)(nil)

// NewInstrumentedSession wraps inner with the given meter and tracer.
func NewInstrumentedSession(inner api.HostSession, meter metric.Meter, tracer trace.Tracer) (*InstrumentedSession, error) {
	collections, err := meter.Int64Counter("mobyhook.collections",
		metric.WithDescription("First-time collections counted through this session."))
	if err != nil {
		return nil, err
	}
	resets, err := meter.Int64Counter("mobyhook.flag_resets",
		metric.WithDescription("Collected-flag resets observed through this session."))
	if err != nil {
		return nil, err
	}
	return &InstrumentedSession{
		inner:       inner,
		tracer:      tracer,
		collections: collections,
		resets:      resets,
	}, nil
}

// Counter implements api.HostSession.
func (s *InstrumentedSession) Counter() (int32, error) {
	return s.inner.Counter()
}

// CollectOnce implements api.HostSession.
func (s *InstrumentedSession) CollectOnce(index int) (bool, error) {
	ctx, span := s.tracer.Start(context.Background(), "mobyhook.CollectOnce",
		trace.WithAttributes(attribute.Int("bolt.index", index)))
	defer span.End()

	counted, err := s.inner.CollectOnce(index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return counted, err
	}
	span.SetAttributes(attribute.Bool("bolt.counted", counted))
	if counted {
		s.collections.Add(ctx, 1, metric.WithAttributes(attribute.Int("bolt.index", index)))
	}
	return counted, nil
}

// Flag implements api.HostSession.
func (s *InstrumentedSession) Flag(index int) (byte, error) {
	return s.inner.Flag(index)
}

// ClearFlag implements api.HostSession.
func (s *InstrumentedSession) ClearFlag(index int) error {
	ctx, span := s.tracer.Start(context.Background(), "mobyhook.ClearFlag",
		trace.WithAttributes(attribute.Int("bolt.index", index)))
	defer span.End()

	if err := s.inner.ClearFlag(index); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.resets.Add(ctx, 1)
	return nil
}

// ReadAt implements api.HostSession.
func (s *InstrumentedSession) ReadAt(addr uint32, buf []byte) error {
	return s.inner.ReadAt(addr, buf)
}

// CallOriginal implements api.HostSession.
func (s *InstrumentedSession) CallOriginal(m *moby.Moby) {
	s.inner.CallOriginal(m)
}

// Ping implements api.HostSession.
func (s *InstrumentedSession) Ping() error {
	return s.inner.Ping()
}

// Close implements api.HostSession.
func (s *InstrumentedSession) Close() error {
	return s.inner.Close()
}
