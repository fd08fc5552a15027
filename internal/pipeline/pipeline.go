// Package pipeline wires the router stages together: subsystem, enumerator,
// default endpoint, virtual cable, activation, format negotiation, session
// start and the routing loop. Every resource is released by defer in reverse
// acquisition order, whichever stage fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/catalog"
	"github.com/breeze-rmm/cablerouter/internal/health"
	"github.com/breeze-rmm/cablerouter/internal/logging"
	"github.com/breeze-rmm/cablerouter/internal/metrics"
	"github.com/breeze-rmm/cablerouter/internal/negotiate"
	"github.com/breeze-rmm/cablerouter/internal/router"
	"github.com/breeze-rmm/cablerouter/internal/session"
)

// Stage names a setup step.
type Stage string

const (
	StageSubsystem      Stage = "initialize audio subsystem"
	StageEnumerator     Stage = "create device enumerator"
	StageDefaultDevice  Stage = "get default render endpoint"
	StageFindCable      Stage = "find virtual cable"
	StageActivateSource Stage = "activate default render endpoint"
	StageActivateCable  Stage = "activate virtual cable"
	StageNegotiate      Stage = "negotiate stream format"
	StageOpenSession    Stage = "initialize streams"
	StageStartSession   Stage = "start streams"
)

// ErrCableNotFound is the cause of a StageFindCable failure when no render
// endpoint matches a cable signature.
var ErrCableNotFound = errors.New("virtual cable not found")

// StageError is a fatal setup failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs one routing session end to end.
type Pipeline struct {
	sub      audio.Subsystem
	monitor  *health.Monitor
	metrics  *metrics.Metrics
	routerOp []router.Option
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHealth reports pipeline and stream state to m.
func WithHealth(m *health.Monitor) Option {
	return func(p *Pipeline) { p.monitor = m }
}

// WithMetrics records routing activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRouterOptions passes extra options to the routing loop.
func WithRouterOptions(opts ...router.Option) Option {
	return func(p *Pipeline) { p.routerOp = append(p.routerOp, opts...) }
}

// New returns a pipeline over the given platform subsystem.
func New(sub audio.Subsystem, opts ...Option) *Pipeline {
	p := &Pipeline{sub: sub}
	for _, o := range opts {
		o(p)
	}
	if p.monitor == nil {
		p.monitor = health.NewMonitor()
	}
	if p.metrics == nil {
		p.metrics = metrics.Discard()
	}
	return p
}

// Run sets up routing and blocks in the routing loop until ctx is
// cancelled. Setup failures are returned as *StageError after everything
// acquired so far has been released. Cancellation returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	ctx = logging.NewContext(ctx, logging.WithRun(logging.FromContext(ctx), runID))
	log := logging.Ctx(ctx, "pipeline")

	if err := p.sub.Initialize(); err != nil {
		return p.fail(log, StageSubsystem, err)
	}
	defer p.sub.Uninitialize()

	enum, err := p.sub.NewEnumerator()
	if err != nil {
		return p.fail(log, StageEnumerator, err)
	}
	defer enum.Release()
	cat := catalog.New(enum)

	src, err := cat.Default(audio.Render)
	if err != nil {
		return p.fail(log, StageDefaultDevice, err)
	}
	defer src.Release()
	log.Info("using render device", logging.KeyDevice, catalog.Name(src), logging.KeyDeviceID, catalog.ID(src))

	cable, found, err := catalog.FindVirtualCable(cat)
	if err != nil {
		return p.fail(log, StageFindCable, err)
	}
	if !found {
		return p.fail(log, StageFindCable, ErrCableNotFound)
	}
	defer cable.Release()
	log.Info("using virtual cable device", logging.KeyDevice, catalog.Name(cable), logging.KeyDeviceID, catalog.ID(cable))

	srcClient, err := src.Activate()
	if err != nil {
		return p.fail(log, StageActivateSource, err)
	}
	defer srcClient.Release()

	dstClient, err := cable.Activate()
	if err != nil {
		return p.fail(log, StageActivateCable, err)
	}
	defer dstClient.Release()

	res, err := negotiate.Negotiate(ctx, srcClient, dstClient)
	if err != nil {
		return p.fail(log, StageNegotiate, err)
	}
	log.Info("negotiated format", "format", res.Format.String(), "fallback", res.Fallback)

	pair, err := session.Open(ctx, srcClient, dstClient, res.Format)
	if err != nil {
		return p.fail(log, StageOpenSession, err)
	}
	defer func() {
		if err := pair.Close(); err != nil {
			log.Warn("stream teardown", logging.Err(err))
		}
	}()

	if err := pair.Start(); err != nil {
		return p.fail(log, StageStartSession, err)
	}
	p.monitor.Update(health.ComponentPipeline, health.Healthy, "routing")
	log.Info("routing audio, press Ctrl+C to stop")

	opts := append([]router.Option{
		router.WithMetrics(p.metrics),
		router.WithHealth(p.monitor.Stream(health.ComponentStream)),
	}, p.routerOp...)

	return router.New(pair.Capture, pair.Render, res.Format, opts...).Run(ctx)
}

func (p *Pipeline) fail(log *slog.Logger, stage Stage, err error) error {
	log.Error("setup failed", logging.KeyOp, string(stage), logging.Err(err))
	p.monitor.Update(health.ComponentPipeline, health.Unhealthy, fmt.Sprintf("%s: %v", stage, err))
	return &StageError{Stage: stage, Err: err}
}
