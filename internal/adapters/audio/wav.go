package audio

import (
	"bytes"
	"fmt"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/deepp5/catrack/internal/domain/model"
)

// WAVE format tags the in-process parser accepts.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// decodeWAV parses integer PCM WAV and returns mono samples in [-1, 1]
// together with the source rate.
func decodeWAV(data []byte) ([]float64, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid wav file", model.ErrDecode)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, 0, fmt.Errorf("%w: wav format tag %d is not integer PCM", model.ErrDecode, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read pcm: %v", model.ErrDecode, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: wav header has no usable format", model.ErrDecode)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	samples, err := normalize(buf, bitDepth)
	if err != nil {
		return nil, 0, err
	}
	return Downmix(samples, buf.Format.NumChannels), buf.Format.SampleRate, nil
}

// normalize maps integer samples to [-1, 1]. 8-bit WAV is unsigned.
func normalize(buf *goaudio.IntBuffer, bitDepth int) ([]float64, error) {
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", model.ErrDecode, bitDepth)
	}
	full := float64(int64(1) << uint(bitDepth-1))
	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			v -= 128
		}
		s := float64(v) / full
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = s
	}
	return out, nil
}
