package wasapi

import (
	"encoding/binary"
	"fmt"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// WAVEFORMATEX is 18 bytes; WAVE_FORMAT_EXTENSIBLE appends 22 more.
const (
	waveFormatExSize     = 18
	waveFormatExtraSize  = 22
	waveFormatExtensible = waveFormatExSize + waveFormatExtraSize
)

// encodeWaveFormat lays f out as a WAVEFORMATEX, or as a
// WAVEFORMATEXTENSIBLE when f carries an extension.
func encodeWaveFormat(f audio.Format) []byte {
	size := waveFormatExSize
	if f.Extension != nil {
		size = waveFormatExtensible
	}
	b := make([]byte, size)
	le := binary.LittleEndian
	le.PutUint16(b[0:], f.Tag)
	le.PutUint16(b[2:], f.Channels)
	le.PutUint32(b[4:], f.SampleRate)
	le.PutUint32(b[8:], f.AvgBytesPerSec)
	le.PutUint16(b[12:], f.BlockAlign)
	le.PutUint16(b[14:], f.BitsPerSample)
	if f.Extension == nil {
		return b
	}
	le.PutUint16(b[16:], waveFormatExtraSize)
	le.PutUint16(b[18:], f.Extension.ValidBitsPerSample)
	le.PutUint32(b[20:], f.Extension.ChannelMask)
	g := f.Extension.SubFormat
	le.PutUint32(b[24:], g.Data1)
	le.PutUint16(b[28:], g.Data2)
	le.PutUint16(b[30:], g.Data3)
	copy(b[32:40], g.Data4[:])
	return b
}

// waveFormatLen returns the full size of the structure whose header is b.
func waveFormatLen(header []byte) int {
	return waveFormatExSize + int(binary.LittleEndian.Uint16(header[16:]))
}

// decodeWaveFormat parses a WAVEFORMATEX or WAVEFORMATEXTENSIBLE.
func decodeWaveFormat(b []byte) (audio.Format, error) {
	if len(b) < waveFormatExSize {
		return audio.Format{}, fmt.Errorf("wave format: %d bytes, need %d", len(b), waveFormatExSize)
	}
	le := binary.LittleEndian
	f := audio.Format{
		Tag:            le.Uint16(b[0:]),
		Channels:       le.Uint16(b[2:]),
		SampleRate:     le.Uint32(b[4:]),
		AvgBytesPerSec: le.Uint32(b[8:]),
		BlockAlign:     le.Uint16(b[12:]),
		BitsPerSample:  le.Uint16(b[14:]),
	}
	if f.Tag != audio.FormatTagExtensible {
		return f, nil
	}
	if len(b) < waveFormatExtensible || le.Uint16(b[16:]) < waveFormatExtraSize {
		return audio.Format{}, fmt.Errorf("wave format: extensible tag with %d bytes", len(b))
	}
	ext := &audio.Extension{
		ValidBitsPerSample: le.Uint16(b[18:]),
		ChannelMask:        le.Uint32(b[20:]),
		SubFormat: audio.GUID{
			Data1: le.Uint32(b[24:]),
			Data2: le.Uint16(b[28:]),
			Data3: le.Uint16(b[30:]),
		},
	}
	copy(ext.SubFormat.Data4[:], b[32:40])
	f.Extension = ext
	return f, nil
}
