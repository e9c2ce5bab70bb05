package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawComment is one top-level comment from a fetched thread
type RawComment struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	Upvotes int    `json:"upvotes"`
}

// RawThread is the fetched discussion thread before any processing
type RawThread struct {
	Title    string       `json:"title"`
	Author   string       `json:"author"`
	Body     string       `json:"body"`
	Comments []RawComment `json:"comments"`
}

// DialogueLine is one attributed utterance in a script.
// AudioRef, StartTime and Duration are empty until the audio stage runs.
type DialogueLine struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	AudioRef  string  `json:"audio_ref"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// Script is the full dialogue script for one generation request.
// It is a value object: helpers return copies, callers never mutate Lines
// in place. The ID is assigned once at creation and is the join key across
// every pipeline stage and the API.
type Script struct {
	ID         string         `json:"id"`
	Lines      []DialogueLine `json:"lines"`
	Background string         `json:"background"`
	Speakers   []string       `json:"speakers"`
}

// NewScript builds a script with the given identity. Speakers not already
// listed but used by a line are added so Speakers stays a superset of every
// line's speaker.
func NewScript(id string, lines []DialogueLine, background string, speakers []string) Script {
	if id == "" {
		id = NewScriptID()
	}
	s := Script{
		ID:         id,
		Lines:      append([]DialogueLine(nil), lines...),
		Background: background,
		Speakers:   append([]string(nil), speakers...),
	}
	seen := make(map[string]bool, len(s.Speakers))
	for _, sp := range s.Speakers {
		seen[sp] = true
	}
	for _, line := range s.Lines {
		if !seen[line.Speaker] {
			seen[line.Speaker] = true
			s.Speakers = append(s.Speakers, line.Speaker)
		}
	}
	return s
}

// NewScriptID returns a fresh script identity
func NewScriptID() string {
	return "script_" + uuid.NewString()
}

// WithLines returns a copy of the script carrying the given lines
func (s Script) WithLines(lines []DialogueLine) Script {
	out := s
	out.Lines = append([]DialogueLine(nil), lines...)
	out.Speakers = append([]string(nil), s.Speakers...)
	return out
}

// AppendLine returns a copy of the script with one more line
func (s Script) AppendLine(line DialogueLine) Script {
	out := s.WithLines(s.Lines)
	out.Lines = append(out.Lines, line)
	found := false
	for _, sp := range out.Speakers {
		if sp == line.Speaker {
			found = true
			break
		}
	}
	if !found {
		out.Speakers = append(out.Speakers, line.Speaker)
	}
	return out
}

// WithAudioRef returns a copy with line i pointing at the given audio artifact
func (s Script) WithAudioRef(i int, ref string) Script {
	out := s.WithLines(s.Lines)
	if i >= 0 && i < len(out.Lines) {
		out.Lines[i].AudioRef = ref
	}
	return out
}

// TotalDuration is the end time of the last-finishing line in seconds
func (s Script) TotalDuration() float64 {
	var total float64
	for _, line := range s.Lines {
		if end := line.StartTime + line.Duration; end > total {
			total = end
		}
	}
	return total
}

// Stage names one pipeline phase. Values advance monotonically; failed and
// cancelled are absorbing.
type Stage string

const (
	StagePending   Stage = "pending"
	StageFetching  Stage = "fetching"
	StageScripting Stage = "scripting"
	StageAudio     Stage = "synthesizing_audio"
	StageRendering Stage = "rendering"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
	StageCancelled Stage = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageCancelled
}

// PipelineJob tracks one in-flight generation request. It lives only in
// process memory and is lost on restart.
type PipelineJob struct {
	ScriptID  string    `json:"script_id"`
	Status    Stage     `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error,omitempty"`
	VideoPath string    `json:"video_path,omitempty"`
}

// JobStatus is the snapshot handed to polling clients
type JobStatus struct {
	ScriptID   string `json:"script_id"`
	Stage      Stage  `json:"stage"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	VideoURL   string `json:"video_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (j PipelineJob) String() string {
	return fmt.Sprintf("job %s [%s]", j.ScriptID, j.Status)
}
