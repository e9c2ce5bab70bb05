// Package media wraps ffprobe for duration measurement of audio and video
// artifacts.
package media

import (
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultBackgroundDuration is assumed when a background asset cannot be
// probed.
const DefaultBackgroundDuration = 60.0

// ProbeDuration returns the duration of a media file in seconds
func ProbeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	return dur, nil
}

// BackgroundDuration probes a background asset, falling back to the default
// assumption when the probe fails. Composition building must not dead-end on
// an unreadable asset.
func BackgroundDuration(path string) float64 {
	dur, err := ProbeDuration(path)
	if err != nil || dur <= 0 {
		log.Printf("[media] could not probe background %s: %v, assuming %.0fs", path, err, DefaultBackgroundDuration)
		return DefaultBackgroundDuration
	}
	return dur
}
