// Package mock provides an in-memory implementation of the platform audio
// capability in [audio] for use in unit tests.
//
// Every object records the calls made on it and exposes exported fields that
// configure return values. Reference counting is tracked on devices, clients
// and services so tests can assert that every handle handed out was released
// exactly once. All types are safe for concurrent use.
//
// Example:
//
//	cable := &mock.Device{Name: "CABLE Input (VB-Audio Virtual Cable)", Client: &mock.Client{}}
//	speakers := &mock.Device{Name: "Speakers", Client: &mock.Client{Mix: audio.NewPCMFormat(48000, 2, 16)}}
//	sub := mock.NewSubsystem(speakers, speakers, cable)
package mock

import (
	"sync"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Subsystem      = (*Subsystem)(nil)
	_ audio.Enumerator     = (*Enumerator)(nil)
	_ audio.Device         = (*Device)(nil)
	_ audio.Client         = (*Client)(nil)
	_ audio.CaptureService = (*CaptureService)(nil)
	_ audio.RenderService  = (*RenderService)(nil)
)

// NewSubsystem returns a subsystem whose enumerator lists render endpoints
// in the given order and reports def as the default render endpoint.
func NewSubsystem(def *Device, render ...*Device) *Subsystem {
	return &Subsystem{
		Enumerator: &Enumerator{
			Endpoints: map[audio.Direction][]*Device{audio.Render: render},
			Defaults:  map[audio.Direction]*Device{audio.Render: def},
		},
	}
}

// Subsystem is a mock [audio.Subsystem].
type Subsystem struct {
	mu sync.Mutex

	// InitializeError is returned by Initialize.
	InitializeError error

	// EnumeratorError is returned by NewEnumerator.
	EnumeratorError error

	// Enumerator is returned by NewEnumerator.
	Enumerator *Enumerator

	initialized   int
	uninitialized int
}

func (s *Subsystem) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InitializeError != nil {
		return s.InitializeError
	}
	s.initialized++
	return nil
}

func (s *Subsystem) Uninitialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uninitialized++
}

func (s *Subsystem) NewEnumerator() (audio.Enumerator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EnumeratorError != nil {
		return nil, s.EnumeratorError
	}
	if s.Enumerator == nil {
		s.Enumerator = &Enumerator{}
	}
	s.Enumerator.acquire()
	return s.Enumerator, nil
}

// Balanced reports whether every Initialize was matched by Uninitialize.
func (s *Subsystem) Balanced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized == s.uninitialized
}

// Initialized returns the number of successful Initialize calls.
func (s *Subsystem) Initialized() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// refs counts handles handed out and released.
type refs struct {
	acquired int
	released int
}

func (r *refs) acquire() { r.acquired++ }

// Enumerator is a mock [audio.Enumerator].
type Enumerator struct {
	mu sync.Mutex
	refs

	// Endpoints lists devices per direction in enumeration order.
	Endpoints map[audio.Direction][]*Device

	// Defaults maps a direction to its default endpoint.
	Defaults map[audio.Direction]*Device

	// EnumError is returned by EnumEndpoints.
	EnumError error

	// DefaultError is returned by DefaultEndpoint.
	DefaultError error

	// EnumCalls records the directions passed to EnumEndpoints.
	EnumCalls []audio.Direction
}

func (e *Enumerator) acquire() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs.acquire()
}

func (e *Enumerator) EnumEndpoints(dir audio.Direction, mask audio.DeviceState) ([]audio.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.EnumCalls = append(e.EnumCalls, dir)
	if e.EnumError != nil {
		return nil, e.EnumError
	}
	var out []audio.Device
	for _, d := range e.Endpoints[dir] {
		if d.state()&mask == 0 {
			continue
		}
		d.acquire()
		out = append(out, d)
	}
	return out, nil
}

func (e *Enumerator) DefaultEndpoint(dir audio.Direction, _ audio.Role) (audio.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.DefaultError != nil {
		return nil, e.DefaultError
	}
	d, ok := e.Defaults[dir]
	if !ok || d == nil {
		return nil, audio.StatusNotFound
	}
	d.acquire()
	return d, nil
}

func (e *Enumerator) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released++
}

// Outstanding returns acquired minus released references.
func (e *Enumerator) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acquired - e.released
}

// Device is a mock [audio.Device].
type Device struct {
	mu sync.Mutex
	refs

	// IDValue is returned by ID.
	IDValue string

	// Name is returned by FriendlyName.
	Name string

	// IDError and NameError are returned by ID and FriendlyName.
	IDError   error
	NameError error

	// State is the liveness state. Zero means active.
	State audio.DeviceState

	// Client is returned by Activate.
	Client *Client

	// ActivateError is returned by Activate.
	ActivateError error

	// ActivateCalls counts Activate invocations.
	ActivateCalls int
}

func (d *Device) state() audio.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.State == 0 {
		return audio.StateActive
	}
	return d.State
}

func (d *Device) acquire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs.acquire()
}

func (d *Device) ID() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.IDError != nil {
		return "", d.IDError
	}
	return d.IDValue, nil
}

func (d *Device) FriendlyName() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NameError != nil {
		return "", d.NameError
	}
	return d.Name, nil
}

func (d *Device) Activate() (audio.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ActivateCalls++
	if d.ActivateError != nil {
		return nil, d.ActivateError
	}
	if d.Client == nil {
		d.Client = &Client{}
	}
	d.Client.acquire()
	return d.Client, nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released++
}

// Outstanding returns acquired minus released references.
func (d *Device) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired - d.released
}

// Acquired returns the number of references handed out.
func (d *Device) Acquired() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired
}
