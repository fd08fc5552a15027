// Package negotiate picks the single stream format shared by the loopback
// capture and the cable render session.
package negotiate

import (
	"context"
	"errors"
	"fmt"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/logging"
)

// ErrNoCommonFormat is returned when the destination rejects both the
// source mix format and the fallback format.
var ErrNoCommonFormat = errors.New("no common stream format")

// Result is the outcome of a negotiation.
type Result struct {
	Format audio.Format
	// Fallback is true when the source mix format was rejected and the fixed
	// PCM fallback is used instead.
	Fallback bool
}

// Negotiate reads the mix format of src and checks it against dst in shared
// mode. Only an unsupported-format rejection triggers the fallback; any other
// failure is returned as is.
func Negotiate(ctx context.Context, src, dst audio.Client) (Result, error) {
	log := logging.Ctx(ctx, "negotiate")

	mix, err := src.MixFormat()
	if err != nil {
		return Result{}, fmt.Errorf("get mix format: %w", err)
	}
	log.Info("source mix format", "format", mix.String())

	err = dst.IsFormatSupported(audio.ShareModeShared, mix)
	if err == nil {
		return Result{Format: mix}, nil
	}
	if !audio.IsUnsupportedFormat(err) {
		return Result{}, fmt.Errorf("check mix format: %w", err)
	}

	fallback := audio.FallbackFormat()
	log.Warn("destination rejected mix format, trying fallback",
		"format", fallback.String(), logging.Err(err))

	if err := dst.IsFormatSupported(audio.ShareModeShared, fallback); err != nil {
		return Result{}, fmt.Errorf("%w: fallback %s: %w", ErrNoCommonFormat, fallback, err)
	}
	return Result{Format: fallback, Fallback: true}, nil
}
