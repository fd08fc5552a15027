// Package audio defines the platform audio capability the router is built on:
// endpoint enumeration, client activation, stream initialization and the
// capture/render buffer exchange. The shapes mirror the Windows Core Audio
// (MMDevice + WASAPI) object model; internal/audio/wasapi implements them on
// Windows and internal/audio/mock implements them in memory for tests.
package audio

// Direction is the data-flow direction of an endpoint.
type Direction uint32

const (
	// Render endpoints play audio (speakers, virtual cable inputs).
	Render Direction = 0
	// Capture endpoints record audio (microphones, virtual cable outputs).
	Capture Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Render:
		return "render"
	case Capture:
		return "capture"
	default:
		return "unknown"
	}
}

// Role selects which default endpoint is returned for a direction.
type Role uint32

const (
	RoleConsole        Role = 0
	RoleMultimedia     Role = 1
	RoleCommunications Role = 2
)

// DeviceState is a bit mask of endpoint liveness states.
type DeviceState uint32

const (
	StateActive     DeviceState = 0x1
	StateDisabled   DeviceState = 0x2
	StateNotPresent DeviceState = 0x4
	StateUnplugged  DeviceState = 0x8
)

// ShareMode is the stream sharing mode.
type ShareMode uint32

const (
	ShareModeShared    ShareMode = 0
	ShareModeExclusive ShareMode = 1
)

// StreamFlags modify stream initialization.
type StreamFlags uint32

// StreamFlagLoopback captures what an endpoint renders instead of what it receives.
const StreamFlagLoopback StreamFlags = 0x00020000

// BufferFlags annotate a captured packet.
type BufferFlags uint32

const (
	BufferFlagDataDiscontinuity BufferFlags = 0x1
	BufferFlagSilent            BufferFlags = 0x2
	BufferFlagTimestampError    BufferFlags = 0x4
)

// ReferenceTime is a duration in 100-nanosecond units.
type ReferenceTime int64

// ReferenceTimePerSecond is one second of reference time.
const ReferenceTimePerSecond ReferenceTime = 10_000_000

// Subsystem is the process-scoped entry point into the platform audio stack.
// Initialize must be paired with Uninitialize on the same goroutine.
type Subsystem interface {
	Initialize() error
	Uninitialize()
	NewEnumerator() (Enumerator, error)
}

// Enumerator lists endpoints.
type Enumerator interface {
	// EnumEndpoints returns the endpoints for dir whose state matches mask,
	// in enumeration order. The caller owns every returned Device.
	EnumEndpoints(dir Direction, mask DeviceState) ([]Device, error)
	DefaultEndpoint(dir Direction, role Role) (Device, error)
	Release()
}

// Device is a reference to a single endpoint.
type Device interface {
	ID() (string, error)
	FriendlyName() (string, error)
	Activate() (Client, error)
	Release()
}

// Client controls one stream on one endpoint.
type Client interface {
	MixFormat() (Format, error)
	// IsFormatSupported returns nil when the endpoint accepts f in mode.
	IsFormatSupported(mode ShareMode, f Format) error
	Initialize(mode ShareMode, flags StreamFlags, bufferDuration ReferenceTime, f Format) error
	CaptureService() (CaptureService, error)
	RenderService() (RenderService, error)
	Start() error
	Stop() error
	Release()
}

// Packet is a captured buffer. Data is only valid until ReleaseBuffer.
type Packet struct {
	Data   []byte
	Frames uint32
	Flags  BufferFlags
}

// CaptureService drains captured packets.
type CaptureService interface {
	NextPacketSize() (uint32, error)
	GetBuffer() (Packet, error)
	ReleaseBuffer(frames uint32) error
	Release()
}

// RenderService fills render buffers. The slice returned by GetBuffer is
// only valid until ReleaseBuffer.
type RenderService interface {
	GetBuffer(frames uint32) ([]byte, error)
	ReleaseBuffer(framesWritten uint32, flags BufferFlags) error
	Release()
}
