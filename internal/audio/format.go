package audio

import (
	"errors"
	"fmt"
)

// Wave format tags.
const (
	FormatTagPCM        uint16 = 0x0001
	FormatTagIEEEFloat  uint16 = 0x0003
	FormatTagExtensible uint16 = 0xFFFE
)

// Fallback format used when the destination rejects the source mix format.
const (
	FallbackSampleRate    = 44100
	FallbackChannels      = 2
	FallbackBitsPerSample = 16
)

// GUID is a 128-bit sub-format identifier in Windows memory layout.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Sub-format GUIDs for WAVE_FORMAT_EXTENSIBLE.
var (
	SubFormatPCM       = GUID{0x00000001, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
	SubFormatIEEEFloat = GUID{0x00000003, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
)

// Extension is the WAVE_FORMAT_EXTENSIBLE tail of a format.
type Extension struct {
	ValidBitsPerSample uint16
	ChannelMask        uint32
	SubFormat          GUID
}

// Format describes an interleaved stream. BlockAlign is the size of one
// frame in bytes and must equal Channels*BitsPerSample/8; AvgBytesPerSec
// must equal SampleRate*BlockAlign.
type Format struct {
	Tag            uint16
	Channels       uint16
	SampleRate     uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	Extension      *Extension
}

// NewPCMFormat builds an integer PCM format with derived alignment and rate.
func NewPCMFormat(sampleRate uint32, channels, bitsPerSample uint16) Format {
	blockAlign := channels * bitsPerSample / 8
	return Format{
		Tag:            FormatTagPCM,
		Channels:       channels,
		SampleRate:     sampleRate,
		BlockAlign:     blockAlign,
		AvgBytesPerSec: sampleRate * uint32(blockAlign),
		BitsPerSample:  bitsPerSample,
	}
}

// FallbackFormat returns 44100 Hz, 16-bit, stereo PCM.
func FallbackFormat() Format {
	return NewPCMFormat(FallbackSampleRate, FallbackChannels, FallbackBitsPerSample)
}

var errInvalidFormat = errors.New("invalid stream format")

// Validate checks that the descriptor is internally consistent.
func (f Format) Validate() error {
	if f.SampleRate == 0 || f.Channels == 0 || f.BitsPerSample == 0 {
		return fmt.Errorf("%w: zero rate, channels or bit depth", errInvalidFormat)
	}
	if f.BitsPerSample%8 != 0 {
		return fmt.Errorf("%w: bits per sample %d is not byte aligned", errInvalidFormat, f.BitsPerSample)
	}
	if want := f.Channels * f.BitsPerSample / 8; f.BlockAlign != want {
		return fmt.Errorf("%w: block align %d, want %d", errInvalidFormat, f.BlockAlign, want)
	}
	if want := f.SampleRate * uint32(f.BlockAlign); f.AvgBytesPerSec != want {
		return fmt.Errorf("%w: byte rate %d, want %d", errInvalidFormat, f.AvgBytesPerSec, want)
	}
	return nil
}

// FrameBytes returns the size in bytes of frames frames.
func (f Format) FrameBytes(frames uint32) int {
	return int(frames) * int(f.BlockAlign)
}

// IsFloat reports whether samples are IEEE floats.
func (f Format) IsFloat() bool {
	if f.Tag == FormatTagIEEEFloat {
		return true
	}
	return f.Tag == FormatTagExtensible && f.Extension != nil && f.Extension.SubFormat == SubFormatIEEEFloat
}

func (f Format) String() string {
	kind := "pcm"
	if f.IsFloat() {
		kind = "float"
	}
	return fmt.Sprintf("%d Hz, %d ch, %d-bit %s (block %d)", f.SampleRate, f.Channels, f.BitsPerSample, kind, f.BlockAlign)
}
