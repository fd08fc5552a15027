// Package wasapi implements the audio capability on Windows Core Audio:
// MMDevice endpoint enumeration and WASAPI shared-mode streams, called
// through their COM vtables on windows/amd64 and windows/arm64. On other
// targets NewSubsystem returns a subsystem that fails to initialize with
// ErrUnsupportedPlatform.
package wasapi
