package compose

import (
	"encoding/json"
	"testing"

	"reddit-reels/config"
	"reddit-reels/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder(bufferSec float64) *Builder {
	return &Builder{
		fps:        30,
		width:      1080,
		height:     1920,
		bufferSec:  bufferSec,
		defaultSec: 30,
	}
}

func timedScript(lines ...types.DialogueLine) types.Script {
	return types.NewScript("script_test", lines, "bg.mp4", nil)
}

func TestBuildClipWhenBackgroundCoversScript(t *testing.T) {
	b := testBuilder(2)
	script := timedScript(types.DialogueLine{Speaker: "narrator", Text: "hi", StartTime: 0, Duration: 10})

	plan := b.Build(script, 60)

	require.IsType(t, Clip{}, plan.Background)
	clip := plan.Background.(Clip)
	assert.Equal(t, plan.TotalFrames, clip.EndFrame)
	assert.Equal(t, 360, plan.TotalFrames) // (10 + 2) * 30
	assert.Equal(t, 1080, plan.Width)
	assert.Equal(t, 1920, plan.Height)
}

func TestBuildClipAtExactBoundary(t *testing.T) {
	b := testBuilder(0)
	script := timedScript(types.DialogueLine{Speaker: "op", Text: "x", StartTime: 0, Duration: 30})

	plan := b.Build(script, 30)

	// Equal durations clip, never loop.
	require.IsType(t, Clip{}, plan.Background)
}

func TestBuildLoopSegments(t *testing.T) {
	b := testBuilder(0)
	// Script runs exactly 75s against a 30s background.
	script := timedScript(types.DialogueLine{Speaker: "narrator", Text: "long", StartTime: 0, Duration: 75})

	plan := b.Build(script, 30)

	assert.Equal(t, 2250, plan.TotalFrames)

	require.IsType(t, Loop{}, plan.Background)
	loop := plan.Background.(Loop)
	require.Len(t, loop.Segments, 3)

	assert.Equal(t, LoopSegment{StartFrame: 0, DurationFrames: 900}, loop.Segments[0])
	assert.Equal(t, LoopSegment{StartFrame: 900, DurationFrames: 900}, loop.Segments[1])
	assert.Equal(t, LoopSegment{StartFrame: 1800, DurationFrames: 450}, loop.Segments[2])
}

func TestBuildLoopWithTrailingBuffer(t *testing.T) {
	b := testBuilder(2)
	script := timedScript(types.DialogueLine{Speaker: "narrator", Text: "long", StartTime: 0, Duration: 75})

	plan := b.Build(script, 30)

	assert.Equal(t, 2310, plan.TotalFrames) // (75 + 2) * 30

	require.IsType(t, Loop{}, plan.Background)
	loop := plan.Background.(Loop)
	require.Len(t, loop.Segments, 3)

	var sum int
	for _, seg := range loop.Segments {
		assert.Greater(t, seg.DurationFrames, 0, "no non-positive segment may be emitted")
		sum += seg.DurationFrames
	}
	assert.Equal(t, plan.TotalFrames, sum, "segment durations must cover the plan exactly")
}

func TestBuildLoopSegmentsAlwaysCoverTotalFrames(t *testing.T) {
	b := testBuilder(2)

	cases := []struct {
		name          string
		scriptDur     float64
		backgroundDur float64
	}{
		{"short background", 45, 10},
		{"near-equal", 30, 29},
		{"tiny background", 20, 1.5},
		{"fractional durations", 33.7, 7.3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := timedScript(types.DialogueLine{Speaker: "op", Text: "x", StartTime: 0, Duration: tc.scriptDur})
			plan := b.Build(script, tc.backgroundDur)

			loop, ok := plan.Background.(Loop)
			require.True(t, ok, "shorter background must loop")

			var sum int
			prevEnd := 0
			for _, seg := range loop.Segments {
				assert.Greater(t, seg.DurationFrames, 0)
				assert.Equal(t, prevEnd, seg.StartFrame, "segments must be contiguous")
				prevEnd = seg.StartFrame + seg.DurationFrames
				sum += seg.DurationFrames
			}
			assert.Equal(t, plan.TotalFrames, sum)
		})
	}
}

func TestBuildZeroLinesUsesDefaultDuration(t *testing.T) {
	b := testBuilder(2)
	script := types.NewScript("script_empty", nil, "bg.mp4", nil)

	plan := b.Build(script, 60)

	assert.Equal(t, 900, plan.TotalFrames) // 30s default, buffer not applied
	assert.Empty(t, plan.AudioCues)
	require.IsType(t, Clip{}, plan.Background)
}

func TestBuildAudioCuesPreserveOrder(t *testing.T) {
	b := testBuilder(2)
	script := timedScript(
		types.DialogueLine{Speaker: "narrator", Text: "a", AudioRef: "a.mp3", StartTime: 0, Duration: 2},
		types.DialogueLine{Speaker: "op", Text: "b", AudioRef: "b.mp3", StartTime: 2.5, Duration: 3},
		types.DialogueLine{Speaker: "commenter1", Text: "c", AudioRef: "c.mp3", StartTime: 6, Duration: 1.5},
	)

	plan := b.Build(script, 120)

	require.Len(t, plan.AudioCues, 3)
	assert.Equal(t, AudioCue{LineIndex: 0, StartFrame: 0, DurationFrames: 60, AssetRef: "a.mp3"}, plan.AudioCues[0])
	assert.Equal(t, AudioCue{LineIndex: 1, StartFrame: 75, DurationFrames: 90, AssetRef: "b.mp3"}, plan.AudioCues[1])
	assert.Equal(t, AudioCue{LineIndex: 2, StartFrame: 180, DurationFrames: 45, AssetRef: "c.mp3"}, plan.AudioCues[2])
}

func TestBuildIsDeterministic(t *testing.T) {
	b := testBuilder(2)
	script := timedScript(
		types.DialogueLine{Speaker: "narrator", Text: "a", AudioRef: "a.mp3", StartTime: 0, Duration: 4.2},
		types.DialogueLine{Speaker: "op", Text: "b", AudioRef: "b.mp3", StartTime: 4.7, Duration: 6.1},
	)

	first := b.Build(script, 8)
	second := b.Build(script, 8)

	assert.Equal(t, first, second)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestPlanJSONCarriesBackgroundMode(t *testing.T) {
	b := testBuilder(0)

	clipPlan := b.Build(timedScript(types.DialogueLine{Speaker: "op", Text: "x", Duration: 5}), 60)
	loopPlan := b.Build(timedScript(types.DialogueLine{Speaker: "op", Text: "x", Duration: 50}), 10)

	clipJSON, err := json.Marshal(clipPlan)
	require.NoError(t, err)
	assert.Contains(t, string(clipJSON), `"mode":"clip"`)
	assert.Contains(t, string(clipJSON), `"end_frame"`)

	loopJSON, err := json.Marshal(loopPlan)
	require.NoError(t, err)
	assert.Contains(t, string(loopJSON), `"mode":"loop"`)
	assert.Contains(t, string(loopJSON), `"segments"`)
}

func TestNewBuilderReadsConfig(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)

	assert.Equal(t, 30, b.fps)
	assert.Equal(t, 1080, b.width)
	assert.Equal(t, 1920, b.height)
}
