package audio

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"reddit-reels/config"
	"reddit-reels/media"
	"reddit-reels/types"
)

const (
	wordsPerSecond = 2.5 // ~150 wpm
	minLineSec     = 1.0
	maxLineSec     = 10.0
)

// Stage synthesizes speech for every script line and assigns the timeline.
// It cannot fail: a broken line falls back to a placeholder artifact with an
// estimated duration, and an unusable voice service degrades the whole stage
// to a fully estimated timeline.
type Stage struct {
	cfg    *config.Config
	client VoiceClient
	probe  func(path string) (float64, error)
}

func New(cfg *config.Config, client VoiceClient) *Stage {
	return &Stage{cfg: cfg, client: client, probe: media.ProbeDuration}
}

// Run returns a copy of the script whose lines all carry an audio reference,
// a start time, and a duration. Lines are processed strictly in index order;
// each synthesis call completes before the next is issued, which keeps the
// external service's rate limits honored.
func (s *Stage) Run(ctx context.Context, script types.Script) types.Script {
	log.Printf("[audio] Generating audio for script %s (%d lines)", script.ID, len(script.Lines))

	if s.client == nil {
		log.Printf("[audio] no voice client, using estimated timeline")
		return s.estimatedTimeline(script)
	}
	if err := s.client.CheckAccess(ctx); err != nil {
		log.Printf("[audio] voice service unusable: %v, using estimated timeline", err)
		return s.estimatedTimeline(script)
	}

	audioDir := filepath.Join(s.cfg.Paths.TempDir, script.ID, "audio")
	if err := os.MkdirAll(audioDir, 0755); err != nil {
		log.Printf("[audio] create audio dir: %v, using estimated timeline", err)
		return s.estimatedTimeline(script)
	}

	lines := make([]types.DialogueLine, 0, len(script.Lines))
	for i, line := range script.Lines {
		log.Printf("[audio] Line %d/%d: %s", i+1, len(script.Lines), line.Speaker)

		ref, dur, err := s.synthesizeLine(ctx, script.ID, audioDir, i, line)
		if err != nil {
			vErr := &types.VoiceSynthesisError{LineIndex: i, Err: err}
			log.Printf("[audio] %v, placeholder audio for this line", vErr)
			ref = PlaceholderRef(script.ID, i)
			dur = EstimateDuration(line.Text)
		}

		out := line
		out.AudioRef = ref
		out.Duration = dur
		lines = append(lines, out)
	}

	timed := script.WithLines(assignStartTimes(lines, s.cfg.LinePause()))
	log.Printf("[audio] ✅ Audio stage done: total %.1fs", timed.TotalDuration())
	return timed
}

func (s *Stage) synthesizeLine(ctx context.Context, scriptID, audioDir string, i int, line types.DialogueLine) (string, float64, error) {
	text := line.Text
	if max := s.cfg.Audio.MaxCharsPerRequest; max > 0 && len(text) > max {
		// Over-long lines are truncated to the request cap, not dropped.
		log.Printf("[audio] line %d truncated from %d to %d chars", i, len(text), max)
		text = truncateAtWord(text, max)
	}

	data, err := s.client.Synthesize(ctx, text, VoiceForSpeaker(line.Speaker))
	if err != nil {
		return "", 0, err
	}

	outFile := filepath.Join(audioDir, fmt.Sprintf("%s_line_%d.mp3", scriptID, i))
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return "", 0, fmt.Errorf("write audio artifact: %w", err)
	}

	dur, err := s.probe(outFile)
	if err != nil || dur <= 0 {
		log.Printf("[audio] could not measure line %d duration: %v, using estimate", i, err)
		dur = EstimateDuration(line.Text)
	}
	return outFile, dur, nil
}

// estimatedTimeline is the whole-stage fallback: placeholder references and
// word-count durations for every line.
func (s *Stage) estimatedTimeline(script types.Script) types.Script {
	lines := make([]types.DialogueLine, 0, len(script.Lines))
	for i, line := range script.Lines {
		out := line
		out.AudioRef = PlaceholderRef(script.ID, i)
		out.Duration = EstimateDuration(line.Text)
		lines = append(lines, out)
	}
	return script.WithLines(assignStartTimes(lines, s.cfg.LinePause()))
}

// assignStartTimes folds over the lines in index order, giving each line the
// running cumulative time and advancing it by the line's duration plus the
// fixed pause. Start times are monotonically increasing and lines never
// overlap by construction.
func assignStartTimes(lines []types.DialogueLine, pause float64) []types.DialogueLine {
	out := make([]types.DialogueLine, 0, len(lines))
	var cum float64
	for _, line := range lines {
		timed := line
		timed.StartTime = cum
		cum += timed.Duration + pause
		out = append(out, timed)
	}
	return out
}

// EstimateDuration estimates speech length from word count at ~150 words per
// minute, clamped to [1s, 10s] per line.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	dur := float64(words) / wordsPerSecond
	if dur < minLineSec {
		return minLineSec
	}
	if dur > maxLineSec {
		return maxLineSec
	}
	return dur
}

// PlaceholderRef names the synthetic audio reference for an unsynthesized line
func PlaceholderRef(scriptID string, i int) string {
	return fmt.Sprintf("placeholder:%s_line_%d", scriptID, i)
}

func truncateAtWord(s string, max int) string {
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut
}
