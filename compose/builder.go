// Package compose turns a timed script and a background asset duration into
// a frame-accurate composition plan for the renderer. Everything here is
// pure: same inputs, same plan.
package compose

import (
	"encoding/json"
	"math"

	"reddit-reels/config"
	"reddit-reels/types"
)

// BackgroundPlan is a tagged variant: exactly one of Clip or Loop. The
// choice is a pure function of (script duration, background duration).
type BackgroundPlan interface {
	mode() string
}

// Clip trims a background at least as long as the script; it is never looped.
type Clip struct {
	EndFrame int `json:"end_frame"`
}

func (Clip) mode() string { return "clip" }

// Loop repeats a background shorter than the script. Segments are emitted in
// order until the script's frame count is covered; the last one is trimmed.
type Loop struct {
	Segments []LoopSegment `json:"segments"`
}

func (Loop) mode() string { return "loop" }

type LoopSegment struct {
	StartFrame     int `json:"start_frame"`
	DurationFrames int `json:"duration_frames"`
}

// AudioCue places one line's audio artifact on the frame timeline
type AudioCue struct {
	LineIndex      int    `json:"line_index"`
	StartFrame     int    `json:"start_frame"`
	DurationFrames int    `json:"duration_frames"`
	AssetRef       string `json:"asset_ref"`
}

// Plan is the derived, renderer-facing description of one video. It is
// rebuilt fresh for every render attempt and never mutated.
type Plan struct {
	FPS               int            `json:"fps"`
	TotalFrames       int            `json:"total_frames"`
	Width             int            `json:"width"`
	Height            int            `json:"height"`
	ScriptDurationSec float64        `json:"script_duration_sec"`
	Background        BackgroundPlan `json:"-"`
	AudioCues         []AudioCue     `json:"audio_cues"`
}

// MarshalJSON emits the background as a tagged object so the renderer's
// handling can switch on "mode"
func (p Plan) MarshalJSON() ([]byte, error) {
	type alias Plan
	bg, err := taggedBackground(p.Background)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Background json.RawMessage `json:"background"`
	}{alias(p), bg})
}

func taggedBackground(bp BackgroundPlan) (json.RawMessage, error) {
	raw, err := json.Marshal(bp)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["mode"] = json.RawMessage(`"` + bp.mode() + `"`)
	return json.Marshal(fields)
}

// Builder holds the fixed render geometry and duration policy
type Builder struct {
	fps        int
	width      int
	height     int
	bufferSec  float64
	defaultSec float64
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		fps:        cfg.Video.FPS,
		width:      cfg.Video.Width,
		height:     cfg.Video.Height,
		bufferSec:  cfg.Video.TrailingBufferSec,
		defaultSec: cfg.Video.DefaultDurationSec,
	}
}

// Build derives the composition plan for a timed script against a background
// asset of the given duration.
//
// The script duration is the latest line end plus a trailing buffer; a script
// with no lines gets the fixed default duration instead of a zero-length
// plan. The background is clipped when it is at least as long as the script
// and looped otherwise.
func (b *Builder) Build(script types.Script, backgroundDurationSec float64) Plan {
	scriptDur := b.defaultSec
	if len(script.Lines) > 0 {
		scriptDur = script.TotalDuration() + b.bufferSec
	}

	totalFrames := int(math.Ceil(scriptDur * float64(b.fps)))

	plan := Plan{
		FPS:               b.fps,
		TotalFrames:       totalFrames,
		Width:             b.width,
		Height:            b.height,
		ScriptDurationSec: scriptDur,
		Background:        buildBackground(scriptDur, backgroundDurationSec, b.fps, totalFrames),
		AudioCues:         buildAudioCues(script, b.fps),
	}
	return plan
}

func buildBackground(scriptDur, backgroundDur float64, fps, totalFrames int) BackgroundPlan {
	if backgroundDur >= scriptDur {
		return Clip{EndFrame: totalFrames}
	}

	backgroundFrames := int(math.Floor(backgroundDur * float64(fps)))
	if backgroundFrames <= 0 {
		// Degenerate asset duration, fall back to a single full-length clip.
		return Clip{EndFrame: totalFrames}
	}

	var segments []LoopSegment
	for start := 0; start < totalFrames; start += backgroundFrames {
		dur := backgroundFrames
		if remaining := totalFrames - start; remaining < dur {
			dur = remaining
		}
		segments = append(segments, LoopSegment{StartFrame: start, DurationFrames: dur})
	}
	return Loop{Segments: segments}
}

func buildAudioCues(script types.Script, fps int) []AudioCue {
	cues := make([]AudioCue, 0, len(script.Lines))
	for i, line := range script.Lines {
		cues = append(cues, AudioCue{
			LineIndex:      i,
			StartFrame:     int(math.Floor(line.StartTime * float64(fps))),
			DurationFrames: int(math.Floor(line.Duration * float64(fps))),
			AssetRef:       line.AudioRef,
		})
	}
	return cues
}
