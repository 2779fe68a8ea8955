package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// BitDepth is the only sample width handled here.
	BitDepth = 16

	maxSample = math.MaxInt16
	minSample = math.MinInt16
)

// Clip is a block of signed 16-bit little endian PCM with its own format.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the clip.
func (c Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.PCM) / (2 * c.Channels)
}

// Duration returns how long the clip plays.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip holds no audio.
func (c Clip) Empty() bool {
	return c.Frames() == 0
}

// Silence returns a silent clip of the given length.
func Silence(d time.Duration, sampleRate, channels int) Clip {
	frames := int(d.Seconds() * float64(sampleRate))
	return Clip{
		PCM:        make([]byte, frames*channels*2),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// ApplyGain returns a copy of the clip scaled by gain. Samples that would
// exceed the 16-bit range are clipped to it.
func ApplyGain(c Clip, gain float64) Clip {
	out := c
	out.PCM = make([]byte, len(c.PCM)&^1)
	if gain == 1 {
		copy(out.PCM, c.PCM)
		return out
	}
	for i := 0; i+1 < len(c.PCM); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(c.PCM[i:])))
		binary.LittleEndian.PutUint16(out.PCM[i:], uint16(clamp(s*gain)))
	}
	return out
}

// Peak returns the largest absolute sample value in the clip.
func Peak(c Clip) int {
	peak := 0
	for i := 0; i+1 < len(c.PCM); i += 2 {
		s := int(int16(binary.LittleEndian.Uint16(c.PCM[i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Resample converts the clip to sampleRate by linear interpolation.
func Resample(c Clip, sampleRate int) Clip {
	if c.SampleRate == sampleRate || c.SampleRate <= 0 || sampleRate <= 0 || c.Empty() {
		c.SampleRate = sampleRate
		return c
	}

	in := c.Frames()
	ratio := float64(sampleRate) / float64(c.SampleRate)
	frames := int(int64(in) * int64(sampleRate) / int64(c.SampleRate))
	out := make([]byte, frames*c.Channels*2)

	for i := 0; i < frames; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		frac := pos - float64(idx)
		for ch := 0; ch < c.Channels; ch++ {
			a := sampleAt(c, idx, ch)
			b := a
			if idx+1 < in {
				b = sampleAt(c, idx+1, ch)
			}
			v := a*(1-frac) + b*frac
			binary.LittleEndian.PutUint16(out[(i*c.Channels+ch)*2:], uint16(clamp(v)))
		}
	}

	return Clip{PCM: out, SampleRate: sampleRate, Channels: c.Channels}
}

// Remix converts the clip to the given channel count. Mono is duplicated
// across channels; multi-channel audio is averaged down to mono.
func Remix(c Clip, channels int) Clip {
	if c.Channels == channels || c.Channels <= 0 || channels <= 0 {
		return c
	}

	frames := c.Frames()
	out := make([]byte, frames*channels*2)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < c.Channels; ch++ {
			sum += sampleAt(c, i, ch)
		}
		v := uint16(clamp(sum / float64(c.Channels)))
		if c.Channels == 1 || channels == 1 {
			for ch := 0; ch < channels; ch++ {
				binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], v)
			}
			continue
		}
		for ch := 0; ch < channels; ch++ {
			src := ch
			if src >= c.Channels {
				src = c.Channels - 1
			}
			binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], uint16(clamp(sampleAt(c, i, src))))
		}
	}
	return Clip{PCM: out, SampleRate: c.SampleRate, Channels: channels}
}

// Convert brings a clip to the given rate and channel count.
func Convert(c Clip, sampleRate, channels int) Clip {
	return Resample(Remix(c, channels), sampleRate)
}

func sampleAt(c Clip, frame, ch int) float64 {
	off := (frame*c.Channels + ch) * 2
	return float64(int16(binary.LittleEndian.Uint16(c.PCM[off:])))
}

func clamp(v float64) int16 {
	switch {
	case v > maxSample:
		return maxSample
	case v < minSample:
		return minSample
	}
	return int16(math.Round(v))
}
