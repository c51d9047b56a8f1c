package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/dgnsrekt/lingoloop/tts"
)

// Format describes 16-bit little endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the PCM data rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// DecodeWAV validates a RIFF/WAVE clip and returns its PCM data and format.
// Only 16-bit integer PCM is supported.
func DecodeWAV(wav []byte) ([]byte, Format, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("%w: not a WAV file", tts.ErrInvalidAudioFormat)
	}

	var (
		format  Format
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return nil, Format{}, fmt.Errorf("%w: short fmt chunk", tts.ErrInvalidAudioFormat)
			}
			audioFormat := binary.LittleEndian.Uint16(wav[body:])
			channels := int(binary.LittleEndian.Uint16(wav[body+2:]))
			rate := int(binary.LittleEndian.Uint32(wav[body+4:]))
			bits := binary.LittleEndian.Uint16(wav[body+14:])
			if audioFormat != 1 || bits != 16 {
				return nil, Format{}, fmt.Errorf("%w: need 16-bit PCM, got format %d with %d bits",
					tts.ErrInvalidAudioFormat, audioFormat, bits)
			}
			if channels < 1 || channels > 2 || rate <= 0 {
				return nil, Format{}, fmt.Errorf("%w: %d channels at %d Hz", tts.ErrInvalidAudioFormat, channels, rate)
			}
			format = Format{SampleRate: rate, Channels: channels}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, Format{}, fmt.Errorf("%w: data before fmt chunk", tts.ErrInvalidAudioFormat)
			}
			end := body + size
			if end > len(wav) {
				end = len(wav)
			}
			pcm := wav[body:end]
			if len(pcm) == 0 {
				return nil, Format{}, tts.ErrEmptyClip
			}
			return pcm, format, nil
		}

		pos = body + size
		// Chunks are word-aligned.
		if size%2 != 0 {
			pos++
		}
	}
	return nil, Format{}, fmt.Errorf("%w: data chunk not found", tts.ErrInvalidAudioFormat)
}

// EncodeWAV wraps 16-bit PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, f Format) []byte {
	out := make([]byte, 44+len(pcm))
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(out[32:], uint16(f.Channels*2))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// Convert resamples and remixes PCM from one format to another using linear
// interpolation. It returns pcm unchanged when the formats match.
func Convert(pcm []byte, from, to Format) []byte {
	if from == to {
		return pcm
	}

	frames := len(pcm) / (2 * from.Channels)
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < from.Channels; c++ {
			off := (i*from.Channels + c) * 2
			sum += float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
		}
		mono[i] = sum / float64(from.Channels)
	}

	outFrames := frames
	if from.SampleRate != to.SampleRate && frames > 0 {
		outFrames = int(int64(frames) * int64(to.SampleRate) / int64(from.SampleRate))
	}
	out := make([]byte, outFrames*to.Channels*2)
	step := float64(from.SampleRate) / float64(to.SampleRate)
	for i := 0; i < outFrames; i++ {
		src := float64(i) * step
		j := int(src)
		v := mono[min(j, frames-1)]
		if j+1 < frames {
			frac := src - float64(j)
			v = v*(1-frac) + mono[j+1]*frac
		}
		s := uint16(int16(v))
		for c := 0; c < to.Channels; c++ {
			binary.LittleEndian.PutUint16(out[(i*to.Channels+c)*2:], s)
		}
	}
	return out
}
