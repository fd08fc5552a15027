package wasapi

import (
	"testing"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// A 48 kHz stereo float mix format as returned by GetMixFormat on a typical
// shared-mode endpoint.
var floatMix = []byte{
	0xFE, 0xFF, // WAVE_FORMAT_EXTENSIBLE
	0x02, 0x00, // channels
	0x80, 0xBB, 0x00, 0x00, // 48000
	0x00, 0xDC, 0x05, 0x00, // 384000
	0x08, 0x00, // block align
	0x20, 0x00, // 32 bits
	0x16, 0x00, // cbSize 22
	0x20, 0x00, // valid bits
	0x03, 0x00, 0x00, 0x00, // front left | front right
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71,
}

func TestDecodeExtensibleMixFormat(t *testing.T) {
	if got := waveFormatLen(floatMix); got != len(floatMix) {
		t.Fatalf("waveFormatLen = %d, want %d", got, len(floatMix))
	}

	f, err := decodeWaveFormat(floatMix)
	if err != nil {
		t.Fatalf("decodeWaveFormat: %v", err)
	}
	if f.SampleRate != 48000 || f.Channels != 2 || f.BitsPerSample != 32 || f.BlockAlign != 8 {
		t.Fatalf("unexpected format %+v", f)
	}
	if !f.IsFloat() {
		t.Fatalf("expected float sub-format, got %+v", f.Extension)
	}
	if f.Extension.ChannelMask != 0x3 {
		t.Errorf("channel mask = %#x, want 0x3", f.Extension.ChannelMask)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("decoded format invalid: %v", err)
	}
}

func TestEncodeMatchesPlatformLayout(t *testing.T) {
	f, err := decodeWaveFormat(floatMix)
	if err != nil {
		t.Fatalf("decodeWaveFormat: %v", err)
	}
	got := encodeWaveFormat(f)
	if string(got) != string(floatMix) {
		t.Fatalf("encoded layout differs:\n got %x\nwant %x", got, floatMix)
	}
}

func TestEncodeFallbackIsPlainWaveFormatEx(t *testing.T) {
	b := encodeWaveFormat(audio.FallbackFormat())
	if len(b) != waveFormatExSize {
		t.Fatalf("len = %d, want %d", len(b), waveFormatExSize)
	}
	if waveFormatLen(b) != waveFormatExSize {
		t.Fatalf("cbSize should be zero for PCM")
	}
	f, err := decodeWaveFormat(b)
	if err != nil {
		t.Fatalf("decodeWaveFormat: %v", err)
	}
	if f != audio.FallbackFormat() {
		t.Fatalf("decoded %+v, want %+v", f, audio.FallbackFormat())
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	if _, err := decodeWaveFormat(floatMix[:10]); err == nil {
		t.Fatal("expected error for short header")
	}
	if _, err := decodeWaveFormat(floatMix[:waveFormatExSize]); err == nil {
		t.Fatal("expected error for extensible tag without tail")
	}
}
