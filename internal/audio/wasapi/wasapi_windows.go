//go:build windows && (amd64 || arm64)

package wasapi

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

var (
	_ audio.Subsystem      = (*subsystem)(nil)
	_ audio.Enumerator     = (*enumerator)(nil)
	_ audio.Device         = (*device)(nil)
	_ audio.Client         = (*client)(nil)
	_ audio.CaptureService = (*captureService)(nil)
	_ audio.RenderService  = (*renderService)(nil)
)

type subsystem struct {
	locked bool
}

// NewSubsystem returns the Core Audio subsystem. COM is initialized in the
// multithreaded apartment and the calling goroutine stays locked to its OS
// thread until Uninitialize.
func NewSubsystem() audio.Subsystem {
	return &subsystem{}
}

func (s *subsystem) Initialize() error {
	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		// S_FALSE: already initialized on this thread, still needs a
		// matching CoUninitialize.
		if st, ok := statusOf(err).(audio.Status); ok && uint32(st) == sFalse {
			s.locked = true
			return nil
		}
		runtime.UnlockOSThread()
		return statusOf(err)
	}
	s.locked = true
	return nil
}

func (s *subsystem) Uninitialize() {
	if !s.locked {
		return
	}
	ole.CoUninitialize()
	s.locked = false
	runtime.UnlockOSThread()
}

func (s *subsystem) NewEnumerator() (audio.Enumerator, error) {
	unk, err := ole.CreateInstance(clsidMMDeviceEnumerator, iidIMMDeviceEnumerator)
	if err != nil {
		return nil, statusOf(err)
	}
	return &enumerator{ptr: uintptr(unsafe.Pointer(unk))}, nil
}

type enumerator struct {
	ptr uintptr
}

func (e *enumerator) EnumEndpoints(dir audio.Direction, mask audio.DeviceState) ([]audio.Device, error) {
	var collection uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(e.ptr, vtblEnumAudioEndpoints), e.ptr,
		uintptr(dir), uintptr(mask), uintptr(unsafe.Pointer(&collection)))); err != nil {
		return nil, err
	}
	defer comRelease(collection)

	var count uint32
	if _, err := hresult(syscall.SyscallN(vtblFn(collection, vtblCollectionGetCount), collection, uintptr(unsafe.Pointer(&count)))); err != nil {
		return nil, err
	}

	devices := make([]audio.Device, 0, count)
	for i := uint32(0); i < count; i++ {
		var dev uintptr
		if _, err := hresult(syscall.SyscallN(vtblFn(collection, vtblCollectionItem), collection, uintptr(i), uintptr(unsafe.Pointer(&dev)))); err != nil {
			for _, d := range devices {
				d.Release()
			}
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		devices = append(devices, &device{ptr: dev})
	}
	return devices, nil
}

func (e *enumerator) DefaultEndpoint(dir audio.Direction, role audio.Role) (audio.Device, error) {
	var dev uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(e.ptr, vtblGetDefaultAudioEndpoint), e.ptr,
		uintptr(dir), uintptr(role), uintptr(unsafe.Pointer(&dev)))); err != nil {
		return nil, err
	}
	return &device{ptr: dev}, nil
}

func (e *enumerator) Release() {
	comRelease(e.ptr)
	e.ptr = 0
}

type device struct {
	ptr uintptr
}

func (d *device) ID() (string, error) {
	var id uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(d.ptr, vtblDeviceGetID), d.ptr, uintptr(unsafe.Pointer(&id)))); err != nil {
		return "", err
	}
	return taskString(id), nil
}

func (d *device) FriendlyName() (string, error) {
	var store uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(d.ptr, vtblDeviceOpenPropertyStore), d.ptr, stgmRead, uintptr(unsafe.Pointer(&store)))); err != nil {
		return "", err
	}
	defer comRelease(store)

	var pv propVariant
	if _, err := hresult(syscall.SyscallN(vtblFn(store, vtblPropertyStoreGetValue), store,
		uintptr(unsafe.Pointer(&pkeyDeviceFriendlyName)), uintptr(unsafe.Pointer(&pv)))); err != nil {
		return "", err
	}
	defer procPropVariantClear.Call(uintptr(unsafe.Pointer(&pv)))

	if pv.vt != vtLPWSTR || pv.val == 0 {
		return "", nil
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(pv.val))), nil
}

func (d *device) Activate() (audio.Client, error) {
	var ac uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(d.ptr, vtblDeviceActivate), d.ptr,
		uintptr(unsafe.Pointer(iidIAudioClient)), clsctxAll, 0, uintptr(unsafe.Pointer(&ac)))); err != nil {
		return nil, err
	}
	return &client{ptr: ac}, nil
}

func (d *device) Release() {
	comRelease(d.ptr)
	d.ptr = 0
}

type client struct {
	ptr    uintptr
	format audio.Format
}

func (c *client) MixFormat() (audio.Format, error) {
	var p uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(c.ptr, vtblClientGetMixFormat), c.ptr, uintptr(unsafe.Pointer(&p)))); err != nil {
		return audio.Format{}, err
	}
	return taskWaveFormat(p)
}

func (c *client) IsFormatSupported(mode audio.ShareMode, f audio.Format) error {
	wfx := encodeWaveFormat(f)
	var (
		closest uintptr
		ret     uintptr
		err     error
	)
	// Exclusive mode takes no closest-match out-parameter.
	if mode == audio.ShareModeExclusive {
		ret, err = hresult(syscall.SyscallN(vtblFn(c.ptr, vtblClientIsFormatSupported), c.ptr,
			uintptr(mode), uintptr(unsafe.Pointer(&wfx[0])), 0))
	} else {
		ret, err = hresult(syscall.SyscallN(vtblFn(c.ptr, vtblClientIsFormatSupported), c.ptr,
			uintptr(mode), uintptr(unsafe.Pointer(&wfx[0])), uintptr(unsafe.Pointer(&closest))))
	}
	if closest != 0 {
		ole.CoTaskMemFree(closest)
	}
	if err != nil {
		return err
	}
	// S_FALSE means a close match exists; the exact format is not accepted.
	if ret == sFalse {
		return audio.StatusUnsupportedFormat
	}
	return nil
}

func (c *client) Initialize(mode audio.ShareMode, flags audio.StreamFlags, bufferDuration audio.ReferenceTime, f audio.Format) error {
	wfx := encodeWaveFormat(f)
	_, err := hresult(syscall.SyscallN(vtblFn(c.ptr, vtblClientInitialize), c.ptr,
		uintptr(mode), uintptr(flags), uintptr(bufferDuration), 0, uintptr(unsafe.Pointer(&wfx[0])), 0))
	if err != nil {
		return err
	}
	c.format = f
	return nil
}

func (c *client) service(iid *ole.GUID) (uintptr, error) {
	var svc uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(c.ptr, vtblClientGetService), c.ptr, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&svc)))); err != nil {
		return 0, err
	}
	return svc, nil
}

func (c *client) CaptureService() (audio.CaptureService, error) {
	svc, err := c.service(iidIAudioCaptureClient)
	if err != nil {
		return nil, err
	}
	return &captureService{ptr: svc, blockAlign: c.format.BlockAlign}, nil
}

func (c *client) RenderService() (audio.RenderService, error) {
	svc, err := c.service(iidIAudioRenderClient)
	if err != nil {
		return nil, err
	}
	return &renderService{ptr: svc, blockAlign: c.format.BlockAlign}, nil
}

func (c *client) Start() error {
	_, err := hresult(syscall.SyscallN(vtblFn(c.ptr, vtblClientStart), c.ptr))
	return err
}

func (c *client) Stop() error {
	_, err := hresult(syscall.SyscallN(vtblFn(c.ptr, vtblClientStop), c.ptr))
	return err
}

func (c *client) Release() {
	comRelease(c.ptr)
	c.ptr = 0
}

type captureService struct {
	ptr        uintptr
	blockAlign uint16
}

func (s *captureService) NextPacketSize() (uint32, error) {
	var frames uint32
	if _, err := hresult(syscall.SyscallN(vtblFn(s.ptr, vtblCaptureGetNextPacketSize), s.ptr, uintptr(unsafe.Pointer(&frames)))); err != nil {
		return 0, err
	}
	return frames, nil
}

func (s *captureService) GetBuffer() (audio.Packet, error) {
	var (
		data   uintptr
		frames uint32
		flags  uint32
	)
	if _, err := hresult(syscall.SyscallN(vtblFn(s.ptr, vtblCaptureGetBuffer), s.ptr,
		uintptr(unsafe.Pointer(&data)), uintptr(unsafe.Pointer(&frames)), uintptr(unsafe.Pointer(&flags)), 0, 0)); err != nil {
		return audio.Packet{}, err
	}
	// AUDCLNT_S_BUFFER_EMPTY is a success code with zero frames.
	pkt := audio.Packet{Frames: frames, Flags: audio.BufferFlags(flags)}
	if data != 0 && frames > 0 {
		pkt.Data = unsafe.Slice((*byte)(unsafe.Pointer(data)), int(frames)*int(s.blockAlign))
	}
	return pkt, nil
}

func (s *captureService) ReleaseBuffer(frames uint32) error {
	_, err := hresult(syscall.SyscallN(vtblFn(s.ptr, vtblCaptureReleaseBuffer), s.ptr, uintptr(frames)))
	return err
}

func (s *captureService) Release() {
	comRelease(s.ptr)
	s.ptr = 0
}

type renderService struct {
	ptr        uintptr
	blockAlign uint16
}

func (s *renderService) GetBuffer(frames uint32) ([]byte, error) {
	var data uintptr
	if _, err := hresult(syscall.SyscallN(vtblFn(s.ptr, vtblRenderGetBuffer), s.ptr, uintptr(frames), uintptr(unsafe.Pointer(&data)))); err != nil {
		return nil, err
	}
	if data == 0 || frames == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), int(frames)*int(s.blockAlign)), nil
}

func (s *renderService) ReleaseBuffer(framesWritten uint32, flags audio.BufferFlags) error {
	_, err := hresult(syscall.SyscallN(vtblFn(s.ptr, vtblRenderReleaseBuffer), s.ptr, uintptr(framesWritten), uintptr(flags)))
	return err
}

func (s *renderService) Release() {
	comRelease(s.ptr)
	s.ptr = 0
}
