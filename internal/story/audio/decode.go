package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"storyecho/internal/domain/story"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

// DecodeMP3 decodes synthesized speech held in memory.
func DecodeMP3(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(data) == 0 {
		return nil, beep.Format{}, fmt.Errorf("%w: empty mp3", ErrPlayback)
	}
	s, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: decode mp3: %v", ErrPlayback, err)
	}
	return s, format, nil
}

// ClipFormat is the beep format of a captured clip.
func ClipFormat(c story.Clip) beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(c.SampleRate),
		NumChannels: c.Channels,
		Precision:   c.Precision,
	}
}

// pcmStreamer streams signed little-endian PCM frames.
type pcmStreamer struct {
	data   []byte
	format beep.Format
	frame  int
	pos    int
}

// NewClipStreamer returns a stream over the clip's PCM data.
func NewClipStreamer(c story.Clip) (beep.StreamSeekCloser, beep.Format, error) {
	format := ClipFormat(c)
	if c.SampleRate <= 0 || c.Channels <= 0 || c.Channels > 2 || c.Precision <= 0 || c.Precision > 3 {
		return nil, format, fmt.Errorf("%w: unsupported clip format %+v", ErrPlayback, format)
	}
	frame := c.Channels * c.Precision
	if len(c.Data) < frame {
		return nil, format, fmt.Errorf("%w: empty clip", ErrPlayback)
	}
	return &pcmStreamer{data: c.Data, format: format, frame: frame}, format, nil
}

func (p *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) && (p.pos+1)*p.frame <= len(p.data) {
		off := p.pos * p.frame
		samples[n], _ = p.format.DecodeSigned(p.data[off : off+p.frame])
		p.pos++
		n++
	}
	return n, n > 0
}

func (p *pcmStreamer) Err() error    { return nil }
func (p *pcmStreamer) Len() int      { return len(p.data) / p.frame }
func (p *pcmStreamer) Position() int { return p.pos }
func (p *pcmStreamer) Close() error  { return nil }

func (p *pcmStreamer) Seek(pos int) error {
	if pos < 0 || pos > p.Len() {
		return errors.New("seek position out of range")
	}
	p.pos = pos
	return nil
}

// readClip drains a stream into a 16-bit PCM clip.
func readClip(s beep.Streamer, format beep.Format) story.Clip {
	out := beep.Format{SampleRate: format.SampleRate, NumChannels: format.NumChannels, Precision: 2}
	frame := out.Width()
	var buf bytes.Buffer
	samples := make([][2]float64, 512)
	enc := make([]byte, frame)
	for {
		n, ok := s.Stream(samples)
		for i := 0; i < n; i++ {
			out.EncodeSigned(enc, samples[i])
			buf.Write(enc)
		}
		if !ok {
			break
		}
	}
	return story.Clip{
		Data:       buf.Bytes(),
		SampleRate: int(out.SampleRate),
		Channels:   out.NumChannels,
		Precision:  out.Precision,
	}
}
