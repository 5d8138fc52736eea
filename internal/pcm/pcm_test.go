package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/lectern/internal/apperrors"
)

func TestDecodeSilence(t *testing.T) {
	buf, err := Decode(make([]byte, 480), 0, 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultSampleRate, buf.SampleRate)
	require.Equal(t, 1, buf.NumChannels())
	assert.Equal(t, 240, buf.Frames())
	for i, v := range buf.Channels[0] {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
}

func TestDecodeMaxPositiveIsBelowOne(t *testing.T) {
	data := make([]byte, 0, 64)
	for i := 0; i < 32; i++ {
		data = append(data, 0xFF, 0x7F)
	}
	buf, err := Decode(data, DefaultSampleRate, 1)
	require.NoError(t, err)

	want := float32(32767.0 / 32768.0)
	for _, v := range buf.Channels[0] {
		assert.Equal(t, want, v)
		assert.NotEqual(t, float32(1.0), v)
	}
}

func TestDecodeMinNegativeIsMinusOne(t *testing.T) {
	buf, err := Decode([]byte{0x00, 0x80}, DefaultSampleRate, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(-1.0), buf.Channels[0][0])
}

func TestDecodeFrameCount(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int
		channels int
		want     int
	}{
		{"empty", 0, 1, 0},
		{"odd trailing byte dropped", 7, 1, 3},
		{"stereo", 8, 2, 2},
		{"stereo incomplete frame dropped", 10, 2, 2},
		{"six channels", 25, 6, 2},
		{"single byte", 1, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Decode(make([]byte, tt.bytes), 24000, tt.channels)
			require.NoError(t, err)
			assert.Equal(t, tt.channels, buf.NumChannels())
			assert.Equal(t, tt.want, buf.Frames())
			for _, ch := range buf.Channels {
				assert.Len(t, ch, tt.want)
			}
		})
	}
}

func TestDecodeDeinterleaves(t *testing.T) {
	// L0=1, R0=-1, L1=2, R1=-2 as int16 little-endian.
	data := []byte{0x01, 0x00, 0xFF, 0xFF, 0x02, 0x00, 0xFE, 0xFF}
	buf, err := Decode(data, 48000, 2)
	require.NoError(t, err)

	assert.Equal(t, []float32{1 / 32768.0, 2 / 32768.0}, buf.Channels[0])
	assert.Equal(t, []float32{-1 / 32768.0, -2 / 32768.0}, buf.Channels[1])
	assert.Equal(t, 48000, buf.SampleRate)
}

func TestBufferDuration(t *testing.T) {
	buf, err := Decode(make([]byte, 24000*2*3), 24000, 1)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, buf.Duration())

	assert.Equal(t, time.Duration(0), (&Buffer{}).Duration())
	assert.Equal(t, 0, (&Buffer{}).Frames())
}

func TestDecodeManyChannels(t *testing.T) {
	const channels = 40
	data := make([]byte, 2*channels*2)
	for c := 0; c < channels; c++ {
		// frame 1 carries the channel number as the sample value
		binary.LittleEndian.PutUint16(data[(channels+c)*2:], uint16(c))
	}

	buf, err := Decode(data, 24000, channels)
	require.NoError(t, err)
	require.Equal(t, channels, buf.NumChannels())
	assert.Equal(t, 2, buf.Frames())
	for c := 0; c < channels; c++ {
		assert.Equal(t, float32(0), buf.Channels[c][0])
		assert.InDelta(t, float64(c)/32768, float64(buf.Channels[c][1]), 1e-9)
	}
}

func TestDecodeBase64(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xFE, 0xFF, 0x7F}
	padded := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeBase64(padded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeBase64("  " + padded + "\n")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeBase64(base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeBase64("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeBase64Invalid(t *testing.T) {
	_, err := DecodeBase64("not*valid*base64!")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDecode, apperrors.KindOf(err))
}

func TestDecodeBase64PCM(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0xFF, 0x7F, 0x00, 0x00})
	buf, err := DecodeBase64PCM(payload, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, buf.Frames())

	_, err = DecodeBase64PCM("%%%", 0, 1)
	assert.True(t, errors.Is(err, apperrors.ErrDecode))
}
