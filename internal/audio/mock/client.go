package mock

import (
	"sync"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// InitCall records the arguments of a single [Client.Initialize] call.
type InitCall struct {
	Mode           audio.ShareMode
	Flags          audio.StreamFlags
	BufferDuration audio.ReferenceTime
	Format         audio.Format
}

// Client is a mock [audio.Client].
type Client struct {
	mu sync.Mutex
	refs

	// Mix is returned by MixFormat.
	Mix audio.Format

	// MixError is returned by MixFormat.
	MixError error

	// Accepts decides IsFormatSupported. A nil Accepts accepts every format.
	Accepts func(audio.Format) error

	// InitializeError, StartError and StopError are returned by the
	// corresponding methods.
	InitializeError error
	StartError      error
	StopError       error

	// CaptureError and RenderError are returned by CaptureService and
	// RenderService.
	CaptureError error
	RenderError  error

	// Capture and Render are returned by CaptureService and RenderService.
	// They are created on demand when nil.
	Capture *CaptureService
	Render  *RenderService

	// SupportCalls records the formats passed to IsFormatSupported.
	SupportCalls []audio.Format

	// InitCalls records all Initialize invocations.
	InitCalls []InitCall

	// StartCalls and StopCalls count Start and Stop invocations.
	StartCalls int
	StopCalls  int

	initialized *audio.Format
	running     bool
}

func (c *Client) acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs.acquire()
}

// RejectAllExcept returns an Accepts func that rejects every format except
// want with AUDCLNT_E_UNSUPPORTED_FORMAT.
func RejectAllExcept(want audio.Format) func(audio.Format) error {
	return func(f audio.Format) error {
		if f.Tag == want.Tag && f.SampleRate == want.SampleRate && f.Channels == want.Channels &&
			f.BitsPerSample == want.BitsPerSample && f.BlockAlign == want.BlockAlign {
			return nil
		}
		return audio.StatusUnsupportedFormat
	}
}

// RejectAll returns an Accepts func that always fails with err.
func RejectAll(err error) func(audio.Format) error {
	return func(audio.Format) error { return err }
}

func (c *Client) MixFormat() (audio.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MixError != nil {
		return audio.Format{}, c.MixError
	}
	return c.Mix, nil
}

func (c *Client) IsFormatSupported(_ audio.ShareMode, f audio.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SupportCalls = append(c.SupportCalls, f)
	if c.Accepts == nil {
		return nil
	}
	return c.Accepts(f)
}

func (c *Client) Initialize(mode audio.ShareMode, flags audio.StreamFlags, d audio.ReferenceTime, f audio.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InitCalls = append(c.InitCalls, InitCall{Mode: mode, Flags: flags, BufferDuration: d, Format: f})
	if c.InitializeError != nil {
		return c.InitializeError
	}
	if c.initialized != nil {
		return audio.StatusAlreadyInitialized
	}
	c.initialized = &f
	return nil
}

func (c *Client) CaptureService() (audio.CaptureService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CaptureError != nil {
		return nil, c.CaptureError
	}
	if c.initialized == nil {
		return nil, audio.StatusNotInitialized
	}
	if c.Capture == nil {
		c.Capture = &CaptureService{}
	}
	c.Capture.bind(*c.initialized)
	return c.Capture, nil
}

func (c *Client) RenderService() (audio.RenderService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RenderError != nil {
		return nil, c.RenderError
	}
	if c.initialized == nil {
		return nil, audio.StatusNotInitialized
	}
	if c.Render == nil {
		c.Render = &RenderService{}
	}
	c.Render.bind(*c.initialized)
	return c.Render, nil
}

func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCalls++
	if c.StartError != nil {
		return c.StartError
	}
	if c.initialized == nil {
		return audio.StatusNotInitialized
	}
	c.running = true
	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
	if c.StopError != nil {
		return c.StopError
	}
	c.running = false
	return nil
}

func (c *Client) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

// Running reports whether the client was started and not stopped.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Outstanding returns acquired minus released references.
func (c *Client) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired - c.released
}
