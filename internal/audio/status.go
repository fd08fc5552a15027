package audio

import (
	"errors"
	"fmt"
)

// Status is an HRESULT returned by the platform audio stack. Only failure
// codes are used as errors.
type Status uint32

// Failure codes the router distinguishes or commonly reports.
const (
	StatusNotInitialized     Status = 0x88890001
	StatusAlreadyInitialized Status = 0x88890002
	StatusWrongEndpointType  Status = 0x88890003
	StatusDeviceInvalidated  Status = 0x88890004
	StatusNotStopped         Status = 0x88890005
	StatusBufferTooLarge     Status = 0x88890006
	StatusOutOfOrder         Status = 0x88890007
	StatusUnsupportedFormat  Status = 0x88890008
	StatusInvalidSize        Status = 0x88890009
	StatusDeviceInUse        Status = 0x8889000A
	StatusServiceNotRunning  Status = 0x88890010
	StatusBufferSizeError    Status = 0x88890016
	StatusBufferError        Status = 0x88890018

	StatusNoInterface  Status = 0x80004002
	StatusPointer      Status = 0x80004003
	StatusFail         Status = 0x80004005
	StatusClassNotReg  Status = 0x80040154
	StatusCOMNotInit   Status = 0x800401F0
	StatusChangedMode  Status = 0x80010106
	StatusAccessDenied Status = 0x80070005
	StatusOutOfMemory  Status = 0x8007000E
	StatusInvalidArg   Status = 0x80070057
	StatusNotFound     Status = 0x80070490
)

// statusInfo holds the symbolic name and a description of a status code.
type statusInfo struct {
	Name    string
	Message string
}

var knownStatuses = map[Status]statusInfo{
	StatusNotInitialized:     {"AUDCLNT_E_NOT_INITIALIZED", "the audio stream has not been initialized"},
	StatusAlreadyInitialized: {"AUDCLNT_E_ALREADY_INITIALIZED", "the audio stream was already initialized"},
	StatusWrongEndpointType:  {"AUDCLNT_E_WRONG_ENDPOINT_TYPE", "the endpoint does not support the requested direction"},
	StatusDeviceInvalidated:  {"AUDCLNT_E_DEVICE_INVALIDATED", "the endpoint was removed, disabled or reconfigured"},
	StatusNotStopped:         {"AUDCLNT_E_NOT_STOPPED", "the audio stream was not stopped"},
	StatusBufferTooLarge:     {"AUDCLNT_E_BUFFER_TOO_LARGE", "requested more frames than the buffer has free"},
	StatusOutOfOrder:         {"AUDCLNT_E_OUT_OF_ORDER", "a previous buffer has not been released"},
	StatusUnsupportedFormat:  {"AUDCLNT_E_UNSUPPORTED_FORMAT", "the endpoint does not support the stream format"},
	StatusInvalidSize:        {"AUDCLNT_E_INVALID_SIZE", "the frame count does not match the acquired buffer"},
	StatusDeviceInUse:        {"AUDCLNT_E_DEVICE_IN_USE", "the endpoint is in use in exclusive mode"},
	StatusServiceNotRunning:  {"AUDCLNT_E_SERVICE_NOT_RUNNING", "the Windows audio service is not running"},
	StatusBufferSizeError:    {"AUDCLNT_E_BUFFER_SIZE_ERROR", "the buffer duration is out of range"},
	StatusBufferError:        {"AUDCLNT_E_BUFFER_ERROR", "the buffer could not be acquired"},

	StatusNoInterface:  {"E_NOINTERFACE", "the requested interface is not supported"},
	StatusPointer:      {"E_POINTER", "an invalid pointer was passed"},
	StatusFail:         {"E_FAIL", "unspecified failure"},
	StatusClassNotReg:  {"REGDB_E_CLASSNOTREG", "the device enumerator class is not registered"},
	StatusCOMNotInit:   {"CO_E_NOTINITIALIZED", "COM has not been initialized on this thread"},
	StatusChangedMode:  {"RPC_E_CHANGED_MODE", "COM was initialized with a different threading model"},
	StatusAccessDenied: {"E_ACCESSDENIED", "access denied"},
	StatusOutOfMemory:  {"E_OUTOFMEMORY", "not enough memory to complete the operation"},
	StatusInvalidArg:   {"E_INVALIDARG", "one or more arguments are not valid"},
	StatusNotFound:     {"E_NOTFOUND", "no endpoint was found"},
}

// Failed reports whether s is a failure code.
func (s Status) Failed() bool {
	return int32(s) < 0
}

// Name returns the symbolic name of s, or "" if it is not a known code.
func (s Status) Name() string {
	return knownStatuses[s].Name
}

// Hex formats s as 0x%08X.
func (s Status) Hex() string {
	return fmt.Sprintf("0x%08X", uint32(s))
}

// Error returns "0x88890008: AUDCLNT_E_UNSUPPORTED_FORMAT: ..." for known
// codes and "0x80070001: unknown status" otherwise.
func (s Status) Error() string {
	if info, ok := knownStatuses[s]; ok {
		return fmt.Sprintf("%s: %s: %s", s.Hex(), info.Name, info.Message)
	}
	return s.Hex() + ": unknown status"
}

// StatusOf extracts the platform status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var s Status
	if errors.As(err, &s) {
		return s, true
	}
	return 0, false
}

// IsUnsupportedFormat reports whether err is a format rejection.
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, StatusUnsupportedFormat)
}

// IsDeviceInvalidated reports whether err means the endpoint went away.
func IsDeviceInvalidated(err error) bool {
	return errors.Is(err, StatusDeviceInvalidated)
}
