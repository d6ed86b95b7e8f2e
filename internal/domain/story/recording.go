package story

import "time"

// Clip is captured PCM audio: signed little-endian samples of Precision bytes.
type Clip struct {
	Data       []byte
	SampleRate int
	Channels   int
	Precision  int
}

// Duration estimates the playing time of the clip.
func (c Clip) Duration() time.Duration {
	frame := c.Channels * c.Precision
	if frame <= 0 || c.SampleRate <= 0 {
		return 0
	}
	frames := len(c.Data) / frame
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// RecordingStatus reports what is held for a cue.
type RecordingStatus string

const (
	RecordingEmpty     RecordingStatus = "empty"
	RecordingCapturing RecordingStatus = "capturing"
	RecordingCaptured  RecordingStatus = "captured"
	RecordingFailed    RecordingStatus = "failed"
)

// Recording is the user's clip for one cue. Handle is the playable handle
// registered for the clip data.
type Recording struct {
	CueIndex int
	Clip     Clip
	Handle   string
	Status   RecordingStatus
}

// Playable reports whether the recording holds a captured clip.
func (r Recording) Playable() bool {
	return r.Status == RecordingCaptured && r.Handle != ""
}
