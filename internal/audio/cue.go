package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// ErrUnsupportedCue is returned for cue files that are neither 16-bit PCM
// WAV nor MP3.
var ErrUnsupportedCue = errors.New("unsupported cue format")

// LoadCue reads and decodes a cue sound file.
func LoadCue(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to read cue: %w", err)
	}
	return DecodeCue(filepath.Ext(path), data)
}

// DecodeCue decodes WAV or MP3 data. The extension is a hint; the data's
// header decides when it is recognisable.
func DecodeCue(ext string, data []byte) (Clip, error) {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return DecodeWAV(data)
	case isMP3(data):
		return DecodeMP3(bytes.NewReader(data))
	}

	switch strings.ToLower(ext) {
	case ".wav", ".wave":
		return DecodeWAV(data)
	case ".mp3":
		return DecodeMP3(bytes.NewReader(data))
	}
	return Clip{}, fmt.Errorf("%w: %q", ErrUnsupportedCue, ext)
}

func isMP3(data []byte) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	// MPEG audio frame sync.
	return len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) (Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrUnsupportedCue, err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	return Clip{PCM: pcm, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

// DecodeWAV parses a RIFF/WAVE file holding 16-bit integer PCM.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedCue)
	}

	var (
		clip    Clip
		haveFmt bool
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4:]))
		body := off + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streaming writers leave the data size unset; take the rest.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Clip{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedCue)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits := binary.LittleEndian.Uint16(data[body+14:])
			// 1 is PCM, 0xFFFE is WAVE_FORMAT_EXTENSIBLE.
			if (format != 1 && format != 0xFFFE) || bits != BitDepth {
				return Clip{}, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedCue, format, bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("%w: data before fmt chunk", ErrUnsupportedCue)
			}
			clip.PCM = data[body:end]
			return clip, nil
		}

		// Chunks are padded to an even size.
		off = end + (end-body)&1
	}

	return Clip{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedCue)
}

// EncodeWAV wraps a clip in a minimal PCM WAV container.
func EncodeWAV(c Clip) []byte {
	var buf bytes.Buffer
	blockAlign := c.Channels * 2
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	w(uint32(36 + len(c.PCM)))
	buf.WriteString("WAVEfmt ")
	w(uint32(16))
	w(uint16(1))
	w(uint16(c.Channels))
	w(uint32(c.SampleRate))
	w(uint32(c.SampleRate * blockAlign))
	w(uint16(blockAlign))
	w(uint16(BitDepth))
	buf.WriteString("data")
	w(uint32(len(c.PCM)))
	buf.Write(c.PCM)
	return buf.Bytes()
}

// Cues loads cue files and keeps them decoded until the file changes.
type Cues struct {
	mu      sync.Mutex
	entries map[string]cueEntry
}

type cueEntry struct {
	clip    Clip
	modTime time.Time
}

// NewCues returns an empty cue cache.
func NewCues() *Cues {
	return &Cues{entries: make(map[string]cueEntry)}
}

// Load returns the decoded cue at path, re-reading it when its
// modification time changes.
func (c *Cues) Load(path string) (Clip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to stat cue: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[path]; ok && e.modTime.Equal(info.ModTime()) {
		return e.clip, nil
	}

	clip, err := LoadCue(path)
	if err != nil {
		return Clip{}, err
	}
	c.entries[path] = cueEntry{clip: clip, modTime: info.ModTime()}
	return clip, nil
}
