// Package metrics records routing activity through the OpenTelemetry
// metrics API and exposes it for scraping, health probing and periodic
// stats logging.
//
// Tests should build [Metrics] with [NewMetrics] and an
// [sdkmetric.ManualReader]-backed provider; production code uses the
// provider returned by [InitProvider].
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// meterName is the instrumentation scope name used for all router metrics.
const meterName = "github.com/breeze-rmm/cablerouter"

// Metrics holds the metric instruments for the routing loop together with
// running totals for the stats reporter. Safe for concurrent use.
type Metrics struct {
	// Packets counts packets copied from capture to render.
	Packets metric.Int64Counter

	// Frames counts frames copied.
	Frames metric.Int64Counter

	// Bytes counts payload bytes copied.
	Bytes metric.Int64Counter

	// IdlePolls counts polls that found no pending packet.
	IdlePolls metric.Int64Counter

	// TransientErrors counts abandoned drain passes. Attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	TransientErrors metric.Int64Counter

	// FlaggedPackets counts captured packets carrying buffer flags.
	// Attribute: attribute.String("flag", ...)
	FlaggedPackets metric.Int64Counter

	// DrainDuration tracks the wall time of drain passes that moved data.
	DrainDuration metric.Float64Histogram

	// DrainPackets tracks the number of packets moved per drain pass.
	DrainPackets metric.Int64Histogram

	totals totals
}

type totals struct {
	packets   atomic.Uint64
	frames    atomic.Uint64
	bytes     atomic.Uint64
	idlePolls atomic.Uint64
	errors    atomic.Uint64
}

// Snapshot is a point-in-time copy of the running totals.
type Snapshot struct {
	Packets         uint64
	Frames          uint64
	Bytes           uint64
	IdlePolls       uint64
	TransientErrors uint64
}

// drainBuckets are histogram boundaries in seconds for a drain pass.
var drainBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Packets, err = m.Int64Counter("cablerouter.packets",
		metric.WithDescription("Packets copied from the loopback capture to the cable."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("cablerouter.frames",
		metric.WithDescription("Audio frames copied."),
	); err != nil {
		return nil, err
	}
	if met.Bytes, err = m.Int64Counter("cablerouter.bytes",
		metric.WithDescription("Payload bytes copied."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.IdlePolls, err = m.Int64Counter("cablerouter.idle_polls",
		metric.WithDescription("Polls that found no pending packet."),
	); err != nil {
		return nil, err
	}
	if met.TransientErrors, err = m.Int64Counter("cablerouter.transient_errors",
		metric.WithDescription("Drain passes abandoned on a buffer error, by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.FlaggedPackets, err = m.Int64Counter("cablerouter.flagged_packets",
		metric.WithDescription("Captured packets carrying discontinuity, silence or timestamp flags."),
	); err != nil {
		return nil, err
	}
	if met.DrainDuration, err = m.Float64Histogram("cablerouter.drain.duration",
		metric.WithDescription("Wall time of drain passes that moved data."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(drainBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DrainPackets, err = m.Int64Histogram("cablerouter.drain.packets",
		metric.WithDescription("Packets moved per drain pass."),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns Metrics backed by a no-op provider. Totals are still kept.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("metrics: noop provider failed: " + err.Error())
	}
	return m
}

// RecordPacket records one copied packet.
func (m *Metrics) RecordPacket(ctx context.Context, frames uint32, n int, flags audio.BufferFlags) {
	m.Packets.Add(ctx, 1)
	m.Frames.Add(ctx, int64(frames))
	m.Bytes.Add(ctx, int64(n))
	m.totals.packets.Add(1)
	m.totals.frames.Add(uint64(frames))
	m.totals.bytes.Add(uint64(n))

	for _, f := range []struct {
		bit  audio.BufferFlags
		name string
	}{
		{audio.BufferFlagDataDiscontinuity, "discontinuity"},
		{audio.BufferFlagSilent, "silent"},
		{audio.BufferFlagTimestampError, "timestamp_error"},
	} {
		if flags&f.bit != 0 {
			m.FlaggedPackets.Add(ctx, 1, metric.WithAttributes(attribute.String("flag", f.name)))
		}
	}
}

// RecordIdle records a poll that found nothing to drain.
func (m *Metrics) RecordIdle(ctx context.Context) {
	m.IdlePolls.Add(ctx, 1)
	m.totals.idlePolls.Add(1)
}

// RecordTransient records a drain pass abandoned at op.
func (m *Metrics) RecordTransient(ctx context.Context, op string, err error) {
	status := "none"
	if s, ok := audio.StatusOf(err); ok {
		status = s.Hex()
	}
	m.TransientErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
	m.totals.errors.Add(1)
}

// RecordDrain records a drain pass that moved packets.
func (m *Metrics) RecordDrain(ctx context.Context, packets int, d time.Duration) {
	if packets == 0 {
		return
	}
	m.DrainDuration.Record(ctx, d.Seconds())
	m.DrainPackets.Record(ctx, int64(packets))
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Packets:         m.totals.packets.Load(),
		Frames:          m.totals.frames.Load(),
		Bytes:           m.totals.bytes.Load(),
		IdlePolls:       m.totals.idlePolls.Load(),
		TransientErrors: m.totals.errors.Load(),
	}
}
