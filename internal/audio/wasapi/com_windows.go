//go:build windows && (amd64 || arm64)

package wasapi

import (
	"errors"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// COM vtable calling infrastructure for MMDevice and WASAPI. Only 64-bit
// targets are built: IAudioClient::Initialize takes REFERENCE_TIME values
// that must fit in one argument word.

var (
	clsidMMDeviceEnumerator = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	iidIMMDeviceEnumerator  = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	iidIAudioClient         = ole.NewGUID("{1CB9AD4C-DBFA-4C32-B178-C2F568A703B2}")
	iidIAudioCaptureClient  = ole.NewGUID("{C8ADBD64-E71E-48A0-A4DE-185C395CD317}")
	iidIAudioRenderClient   = ole.NewGUID("{F294ACFC-3146-4483-A7BF-ADDCA7C260E2}")
)

// propertyKey matches PROPERTYKEY.
type propertyKey struct {
	fmtid ole.GUID
	pid   uint32
}

var pkeyDeviceFriendlyName = propertyKey{
	fmtid: *ole.NewGUID("{A45C254E-DF1C-4EFD-8020-67D146A850E0}"),
	pid:   14,
}

// propVariant matches PROPVARIANT for the VT_LPWSTR case.
type propVariant struct {
	vt       uint16
	reserved [3]uint16
	val      uintptr
	pad      uintptr
}

const (
	vtLPWSTR = 31

	clsctxAll = 0x1 | 0x2 | 0x4 | 0x10
	stgmRead  = 0

	sFalse = 0x1
)

// --- vtable index constants ---
//
// IUnknown:             0=QueryInterface, 1=AddRef, 2=Release
// IMMDeviceEnumerator:  3=EnumAudioEndpoints, 4=GetDefaultAudioEndpoint
// IMMDeviceCollection:  3=GetCount, 4=Item
// IMMDevice:            3=Activate, 4=OpenPropertyStore, 5=GetId, 6=GetState
// IPropertyStore:       5=GetValue
// IAudioClient:         3=Initialize, 7=IsFormatSupported, 8=GetMixFormat,
//                       10=Start, 11=Stop, 14=GetService
// IAudioCaptureClient:  3=GetBuffer, 4=ReleaseBuffer, 5=GetNextPacketSize
// IAudioRenderClient:   3=GetBuffer, 4=ReleaseBuffer

const (
	vtblEnumAudioEndpoints      = 3
	vtblGetDefaultAudioEndpoint = 4

	vtblCollectionGetCount = 3
	vtblCollectionItem     = 4

	vtblDeviceActivate          = 3
	vtblDeviceOpenPropertyStore = 4
	vtblDeviceGetID             = 5

	vtblPropertyStoreGetValue = 5

	vtblClientInitialize        = 3
	vtblClientIsFormatSupported = 7
	vtblClientGetMixFormat      = 8
	vtblClientStart             = 10
	vtblClientStop              = 11
	vtblClientGetService        = 14

	vtblCaptureGetBuffer         = 3
	vtblCaptureReleaseBuffer     = 4
	vtblCaptureGetNextPacketSize = 5

	vtblRenderGetBuffer     = 3
	vtblRenderReleaseBuffer = 4
)

var (
	ole32 = windows.NewLazySystemDLL("ole32.dll")

	procPropVariantClear = ole32.NewProc("PropVariantClear")
)

// vtblFn returns the address of method vtableIdx of the COM interface obj
// (a pointer to a pointer to its vtable).
func vtblFn(obj uintptr, vtableIdx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))
}

// hresult maps the result of a vtable call made with syscall.SyscallN.
// Failure HRESULTs come back as audio.Status; success codes such as S_FALSE
// are returned in ret. Call sites pass the SyscallN call directly so every
// pointer-to-uintptr conversion stays inside the SyscallN call expression.
func hresult(ret, _ uintptr, _ syscall.Errno) (uintptr, error) {
	if int32(ret) < 0 {
		return ret, audio.Status(uint32(ret))
	}
	return ret, nil
}

// comRelease calls IUnknown::Release.
func comRelease(obj uintptr) {
	if obj != 0 {
		(*ole.IUnknown)(unsafe.Pointer(obj)).Release()
	}
}

// statusOf converts a go-ole error into an audio.Status.
func statusOf(err error) error {
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		return audio.Status(uint32(oleErr.Code()))
	}
	return err
}

// taskString copies a CoTaskMemAlloc'd UTF-16 string and frees it.
func taskString(p uintptr) string {
	if p == 0 {
		return ""
	}
	s := windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p)))
	ole.CoTaskMemFree(p)
	return s
}

// taskWaveFormat copies a CoTaskMemAlloc'd WAVEFORMATEX and frees it.
func taskWaveFormat(p uintptr) (audio.Format, error) {
	defer ole.CoTaskMemFree(p)
	header := unsafe.Slice((*byte)(unsafe.Pointer(p)), waveFormatExSize)
	return decodeWaveFormat(unsafe.Slice((*byte)(unsafe.Pointer(p)), waveFormatLen(header)))
}
