// Package pcm turns the speech service payload into playable samples:
// base64 text to raw bytes, raw bytes to normalized float PCM.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"

	"github.com/tiroq/lectern/internal/apperrors"
)

const (
	// DefaultSampleRate is the rate of the speech service output.
	DefaultSampleRate = 24000
	// DefaultChannels is mono.
	DefaultChannels = 1

	bytesPerSample = 2
	fullScale      = 32768.0
)

// Buffer holds de-interleaved samples in [-1, 1), one slice per channel.
// All channel slices have the same length.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the number of sample frames per channel.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// DecodeBase64 converts a base64 payload into bytes. Padding is optional and
// surrounding whitespace is ignored.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	if len(payload)%4 != 0 {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
	}
	return nil, apperrors.Decode("invalid base64 audio payload", err)
}

// Decode reinterprets data as 16-bit signed little-endian samples and
// de-interleaves them round-robin into channels. A trailing odd byte is
// dropped, as are samples that do not complete a frame. Non-positive
// sampleRate and channels fall back to the defaults.
func Decode(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}

	frames := len(data) / bytesPerSample / channels
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * bytesPerSample
			s := int16(binary.LittleEndian.Uint16(data[off : off+bytesPerSample]))
			buf.Channels[c][i] = float32(float64(s) / fullScale)
		}
	}
	return buf, nil
}

// DecodeBase64PCM is DecodeBase64 followed by Decode.
func DecodeBase64PCM(payload string, sampleRate, channels int) (*Buffer, error) {
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return Decode(data, sampleRate, channels)
}
