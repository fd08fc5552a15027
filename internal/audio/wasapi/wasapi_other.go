//go:build !windows || !(amd64 || arm64)

package wasapi

import (
	"errors"
	"runtime"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// ErrUnsupportedPlatform is returned by Initialize outside 64-bit Windows.
var ErrUnsupportedPlatform = errors.New("wasapi: audio routing requires 64-bit Windows, running on " + runtime.GOOS + "/" + runtime.GOARCH)

type subsystem struct{}

// NewSubsystem returns a subsystem that cannot be initialized.
func NewSubsystem() audio.Subsystem {
	return subsystem{}
}

func (subsystem) Initialize() error { return ErrUnsupportedPlatform }

func (subsystem) Uninitialize() {}

func (subsystem) NewEnumerator() (audio.Enumerator, error) {
	return nil, ErrUnsupportedPlatform
}
