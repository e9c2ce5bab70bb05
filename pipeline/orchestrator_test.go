package pipeline

import (
	"context"
	"testing"
	"time"

	"reddit-reels/compose"
	"reddit-reels/config"
	"reddit-reels/render"
	"reddit-reels/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(context.Context, string) *types.RawThread {
	return &types.RawThread{Title: "A thread", Body: "Body"}
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(_ context.Context, id string, _ *types.RawThread) types.Script {
	return types.NewScript(id, []types.DialogueLine{
		{Speaker: "narrator", Text: "hello"},
	}, "bg.mp4", nil)
}

type fakeSpeech struct{}

func (fakeSpeech) Run(_ context.Context, s types.Script) types.Script {
	lines := make([]types.DialogueLine, len(s.Lines))
	for i, l := range s.Lines {
		l.AudioRef = "audio.mp3"
		l.StartTime = float64(i) * 3
		l.Duration = 2.5
		lines[i] = l
	}
	return s.WithLines(lines)
}

type fakeRenderer struct {
	err       error
	blockCtx  bool
	gotScript chan types.Script
}

func (f *fakeRenderer) Run(ctx context.Context, s types.Script, _ compose.Plan, _ render.Assets) (string, error) {
	if f.gotScript != nil {
		f.gotScript <- s
	}
	if f.blockCtx {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return "/videos/" + s.ID + ".mp4", nil
}

func newTestManager(r Renderer) *Manager {
	m := NewManager(config.Default(), fakeFetcher{}, fakeSynth{}, fakeSpeech{}, r)
	m.probeBackground = func(string) float64 { return 60 }
	return m
}

func waitForStage(t *testing.T, m *Manager, id string, want types.Stage) types.JobStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := m.GetStatus(id)
		require.NoError(t, err)
		if status.Stage == want {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _ := m.GetStatus(id)
	t.Fatalf("job %s never reached %s (still %s)", id, want, status.Stage)
	return types.JobStatus{}
}

func TestPipelineCompletes(t *testing.T) {
	m := newTestManager(&fakeRenderer{})

	id := m.Start(GenerateRequest{ThreadURL: "https://reddit.com/r/x/comments/abc/"})
	require.NotEmpty(t, id)

	status := waitForStage(t, m, id, types.StageCompleted)
	assert.Equal(t, 100, status.Percentage)
	assert.Equal(t, "/videos/"+id+".mp4", status.VideoURL)
	assert.Empty(t, status.Error)
}

func TestPipelinePassesScriptIdentityThrough(t *testing.T) {
	r := &fakeRenderer{gotScript: make(chan types.Script, 1)}
	m := newTestManager(r)

	id := m.Start(GenerateRequest{ThreadURL: "https://reddit.com/r/x/comments/abc/"})

	select {
	case s := <-r.gotScript:
		assert.Equal(t, id, s.ID, "the script ID is the join key across all stages")
	case <-time.After(2 * time.Second):
		t.Fatal("renderer never invoked")
	}
	waitForStage(t, m, id, types.StageCompleted)
}

func TestPipelineRenderFailureMarksJobFailed(t *testing.T) {
	m := newTestManager(&fakeRenderer{err: &types.RenderError{ScriptID: "x", Reason: "exit status 1"}})

	id := m.Start(GenerateRequest{ThreadURL: "https://reddit.com/r/x/comments/abc/"})

	status := waitForStage(t, m, id, types.StageFailed)
	assert.Contains(t, status.Error, "exit status 1")
	assert.Empty(t, status.VideoURL)
}

func TestPipelineBackgroundOverride(t *testing.T) {
	r := &fakeRenderer{gotScript: make(chan types.Script, 1)}
	m := newTestManager(r)

	m.Start(GenerateRequest{
		ThreadURL:  "https://reddit.com/r/x/comments/abc/",
		Background: "subway-surfers.mp4",
	})

	s := <-r.gotScript
	assert.Equal(t, "subway-surfers.mp4", s.Background)
}

func TestCancelDuringRender(t *testing.T) {
	r := &fakeRenderer{gotScript: make(chan types.Script, 1), blockCtx: true}
	m := newTestManager(r)

	id := m.Start(GenerateRequest{ThreadURL: "https://reddit.com/r/x/comments/abc/"})

	<-r.gotScript // renderer is now blocked on its context
	require.NoError(t, m.Cancel(id))

	status := waitForStage(t, m, id, types.StageCancelled)
	assert.Equal(t, types.StageCancelled, status.Stage)
	assert.Empty(t, status.Error, "cancellation is not a failure")
}

func TestCancelIsIdempotent(t *testing.T) {
	m := newTestManager(&fakeRenderer{})

	id := m.Start(GenerateRequest{ThreadURL: "https://reddit.com/r/x/comments/abc/"})
	waitForStage(t, m, id, types.StageCompleted)

	// Cancel on a terminal job is a no-op, twice over.
	require.NoError(t, m.Cancel(id))
	require.NoError(t, m.Cancel(id))

	status, err := m.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, types.StageCompleted, status.Stage)
}

func TestCancelUnknownJob(t *testing.T) {
	m := newTestManager(&fakeRenderer{})
	assert.ErrorIs(t, m.Cancel("script_nope"), ErrUnknownScript)
}

func TestGetStatusUnknownJob(t *testing.T) {
	m := newTestManager(&fakeRenderer{})
	_, err := m.GetStatus("script_nope")
	assert.ErrorIs(t, err, ErrUnknownScript)
}

func TestProgressIsMonotonic(t *testing.T) {
	m := newTestManager(&fakeRenderer{})

	id := m.Start(GenerateRequest{ThreadURL: "https://reddit.com/r/x/comments/abc/"})

	last := -1
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := m.GetStatus(id)
		require.NoError(t, err)
		require.GreaterOrEqual(t, status.Percentage, last, "progress must never go backwards")
		last = status.Percentage
		if status.Stage.Terminal() {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, 100, last)
}
