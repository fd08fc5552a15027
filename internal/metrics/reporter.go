package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/breeze-rmm/cablerouter/internal/health"
	"github.com/breeze-rmm/cablerouter/internal/logging"
)

// Reporter periodically logs routing totals, health and the process CPU
// usage.
type Reporter struct {
	interval time.Duration
	metrics  *Metrics
	mon      *health.Monitor
	proc     *process.Process
	last     Snapshot
}

// NewReporter returns a reporter logging every interval. The CPU figure is
// omitted when the process cannot be inspected.
func NewReporter(interval time.Duration, m *Metrics, mon *health.Monitor) *Reporter {
	r := &Reporter{interval: interval, metrics: m, mon: mon}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		r.proc = p
		p.Percent(0)
	} else {
		log.Debug("process stats unavailable", logging.Err(err))
	}
	return r
}

// Run logs a stats line every interval until ctx is cancelled. A
// non-positive interval disables reporting.
func (r *Reporter) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report logs one stats line with totals and the delta since the last call.
func (r *Reporter) Report() {
	cur := r.metrics.Snapshot()
	delta := Snapshot{
		Packets:         cur.Packets - r.last.Packets,
		Frames:          cur.Frames - r.last.Frames,
		Bytes:           cur.Bytes - r.last.Bytes,
		IdlePolls:       cur.IdlePolls - r.last.IdlePolls,
		TransientErrors: cur.TransientErrors - r.last.TransientErrors,
	}
	r.last = cur

	warnings, errs := logging.Counts()
	attrs := []any{
		"packets", cur.Packets,
		"frames", cur.Frames,
		"bytes", cur.Bytes,
		"packetsDelta", delta.Packets,
		"idlePollsDelta", delta.IdlePolls,
		"transientErrors", cur.TransientErrors,
		"transientErrorsDelta", delta.TransientErrors,
		"logWarnings", warnings,
		"logErrors", errs,
		"health", string(r.mon.Overall()),
	}
	if r.proc != nil {
		if pct, err := r.proc.Percent(0); err == nil {
			attrs = append(attrs, "cpuPercent", pct)
		}
	}
	log.Info("routing stats", attrs...)
}

// LogHost logs a one-line description of the host platform.
func LogHost() {
	info, err := host.Info()
	if err != nil {
		log.Debug("host info unavailable", logging.Err(err))
		return
	}
	log.Info("host",
		"hostname", info.Hostname,
		"platform", info.Platform,
		"platformVersion", info.PlatformVersion,
		"kernelArch", info.KernelArch,
	)
}
