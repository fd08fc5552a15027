package mock

import (
	"sync"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// Step is one scripted poll of a [CaptureService].
//
// A step with Frames == 0 and no errors models an empty poll: NextPacketSize
// reports 0 and the step is consumed. Otherwise NextPacketSize reports Frames
// and the step is consumed by the following GetBuffer/ReleaseBuffer pair.
type Step struct {
	Frames uint32
	Flags  audio.BufferFlags

	// Data is the captured payload. When nil a deterministic pattern of
	// Frames*BlockAlign bytes is generated.
	Data []byte

	// SizeError fails NextPacketSize and consumes the step.
	SizeError error

	// GetError fails GetBuffer and consumes the step.
	GetError error

	// ReleaseError fails ReleaseBuffer. The step is still consumed.
	ReleaseError error
}

// Packets returns one step per frame count; zero counts become empty polls.
func Packets(frames ...uint32) []Step {
	steps := make([]Step, len(frames))
	for i, n := range frames {
		steps[i] = Step{Frames: n}
	}
	return steps
}

// NewCaptureService returns a capture service for format f that plays
// script.
func NewCaptureService(f audio.Format, script ...Step) *CaptureService {
	return &CaptureService{Script: script, format: f}
}

// CaptureService is a scripted mock [audio.CaptureService].
type CaptureService struct {
	mu sync.Mutex

	// Script is consumed front to back.
	Script []Step

	// OnExhausted is called, without the lock held, each time NextPacketSize
	// finds the script empty. Tests use it to cancel the routing loop.
	OnExhausted func()

	// Delivered records the payload of every packet handed out by GetBuffer.
	Delivered [][]byte

	// Released records the frame counts passed to ReleaseBuffer.
	Released []uint32

	// SizeCalls counts NextPacketSize invocations.
	SizeCalls int

	format   audio.Format
	holding  *Step
	seq      int
	releases int
}

func (c *CaptureService) bind(f audio.Format) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.format = f
}

func (c *CaptureService) NextPacketSize() (uint32, error) {
	c.mu.Lock()
	c.SizeCalls++
	if len(c.Script) == 0 {
		hook := c.OnExhausted
		c.mu.Unlock()
		if hook != nil {
			hook()
		}
		return 0, nil
	}
	defer c.mu.Unlock()

	head := c.Script[0]
	if head.SizeError != nil {
		c.Script = c.Script[1:]
		return 0, head.SizeError
	}
	if head.Frames == 0 {
		c.Script = c.Script[1:]
		return 0, nil
	}
	return head.Frames, nil
}

func (c *CaptureService) GetBuffer() (audio.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding != nil {
		return audio.Packet{}, audio.StatusOutOfOrder
	}
	if len(c.Script) == 0 {
		return audio.Packet{}, nil
	}
	head := c.Script[0]
	if head.GetError != nil {
		c.Script = c.Script[1:]
		return audio.Packet{}, head.GetError
	}

	data := head.Data
	if data == nil {
		data = pattern(c.format.FrameBytes(head.Frames), c.seq)
	}
	c.seq++
	c.holding = &head
	c.Delivered = append(c.Delivered, data)
	return audio.Packet{Data: data, Frames: head.Frames, Flags: head.Flags}, nil
}

func (c *CaptureService) ReleaseBuffer(frames uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding == nil {
		return audio.StatusOutOfOrder
	}
	held := c.holding
	c.holding = nil
	c.Script = c.Script[1:]
	c.Released = append(c.Released, frames)
	if held.ReleaseError != nil {
		return held.ReleaseError
	}
	if frames != 0 && frames != held.Frames {
		return audio.StatusInvalidSize
	}
	return nil
}

func (c *CaptureService) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
}

// Holding reports whether a packet is acquired and not yet released.
func (c *CaptureService) Holding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holding != nil
}

// ServiceReleases returns the number of Release calls on the service itself.
func (c *CaptureService) ServiceReleases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// RenderRelease records one [RenderService.ReleaseBuffer] call.
type RenderRelease struct {
	Frames uint32
	Flags  audio.BufferFlags
	// Data is the committed prefix of the acquired buffer.
	Data []byte
}

// NewRenderService returns a render service for format f.
func NewRenderService(f audio.Format) *RenderService {
	return &RenderService{format: f}
}

// RenderService is a mock [audio.RenderService].
type RenderService struct {
	mu sync.Mutex

	// GetErrors fails the GetBuffer call with the given zero-based index.
	GetErrors map[int]error

	// ReleaseErrors fails the ReleaseBuffer call with the given index.
	ReleaseErrors map[int]error

	// Short makes GetBuffer return a buffer one frame smaller than
	// requested for the given call index.
	Short map[int]bool

	// Acquired records the frame counts of successful GetBuffer calls.
	Acquired []uint32

	// Releases records every ReleaseBuffer call.
	Releases []RenderRelease

	format   audio.Format
	gets     int
	holding  []byte
	released int
}

func (r *RenderService) bind(f audio.Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.format = f
}

func (r *RenderService) GetBuffer(frames uint32) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.gets
	r.gets++
	if r.holding != nil {
		return nil, audio.StatusOutOfOrder
	}
	if err := r.GetErrors[idx]; err != nil {
		return nil, err
	}
	size := r.format.FrameBytes(frames)
	if r.Short[idx] && frames > 0 {
		size = r.format.FrameBytes(frames - 1)
	}
	r.holding = make([]byte, size)
	r.Acquired = append(r.Acquired, frames)
	return r.holding, nil
}

func (r *RenderService) ReleaseBuffer(framesWritten uint32, flags audio.BufferFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holding == nil {
		return audio.StatusOutOfOrder
	}
	idx := len(r.Releases)
	n := r.format.FrameBytes(framesWritten)
	if n > len(r.holding) {
		n = len(r.holding)
	}
	data := append([]byte(nil), r.holding[:n]...)
	r.holding = nil
	r.Releases = append(r.Releases, RenderRelease{Frames: framesWritten, Flags: flags, Data: data})
	return r.ReleaseErrors[idx]
}

func (r *RenderService) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released++
}

// Written returns the payloads of releases that committed frames.
func (r *RenderService) Written() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, rel := range r.Releases {
		if rel.Frames > 0 {
			out = append(out, rel.Data)
		}
	}
	return out
}

// Holding reports whether a buffer is acquired and not yet released.
func (r *RenderService) Holding() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holding != nil
}

// ServiceReleases returns the number of Release calls on the service itself.
func (r *RenderService) ServiceReleases() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// pattern returns n bytes that differ between packets.
func pattern(n, seq int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + seq*13 + 1)
	}
	return b
}
