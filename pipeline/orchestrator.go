package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"reddit-reels/compose"
	"reddit-reels/config"
	"reddit-reels/media"
	"reddit-reels/render"
	"reddit-reels/types"
)

// ErrUnknownScript is returned for status or cancel requests against an ID
// the manager has never seen.
var ErrUnknownScript = errors.New("unknown script id")

// Stage collaborators, defined where they are consumed. Stages one to three
// cannot fail: they hand back a valid (possibly degraded) result.
type (
	Fetcher interface {
		Fetch(ctx context.Context, url string) *types.RawThread
	}
	Synthesizer interface {
		Synthesize(ctx context.Context, id string, raw *types.RawThread) types.Script
	}
	SpeechStage interface {
		Run(ctx context.Context, script types.Script) types.Script
	}
	Renderer interface {
		Run(ctx context.Context, script types.Script, plan compose.Plan, assets render.Assets) (string, error)
	}
)

// Coarse progress weighting per stage; derived from nothing finer than
// "which stage are we in", and never decreases.
var stageProgress = map[types.Stage]int{
	types.StagePending:   0,
	types.StageFetching:  10,
	types.StageScripting: 30,
	types.StageAudio:     55,
	types.StageRendering: 80,
	types.StageCompleted: 100,
}

var stageMessage = map[types.Stage]string{
	types.StagePending:   "Queued",
	types.StageFetching:  "Fetching thread",
	types.StageScripting: "Generating script",
	types.StageAudio:     "Synthesizing audio",
	types.StageRendering: "Rendering video",
	types.StageCompleted: "Video ready",
	types.StageFailed:    "Generation failed",
	types.StageCancelled: "Cancelled",
}

type jobEntry struct {
	job      types.PipelineJob
	progress int
	cancel   context.CancelFunc
}

// Manager runs the four-stage pipeline for each request and owns all job
// state. Stages run strictly sequentially within one request; multiple
// requests run concurrently, each under its own entry in the job map. The
// map is only ever written here, under the mutex.
type Manager struct {
	cfg      *config.Config
	fetcher  Fetcher
	scripts  Synthesizer
	speech   SpeechStage
	builder  *compose.Builder
	renderer Renderer

	// probeBackground resolves a background asset to a duration; swapped in
	// tests to avoid ffprobe.
	probeBackground func(path string) float64

	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

func NewManager(cfg *config.Config, fetcher Fetcher, scripts Synthesizer, speech SpeechStage, renderer Renderer) *Manager {
	return &Manager{
		cfg:             cfg,
		fetcher:         fetcher,
		scripts:         scripts,
		speech:          speech,
		builder:         compose.NewBuilder(cfg),
		renderer:        renderer,
		probeBackground: media.BackgroundDuration,
		jobs:            make(map[string]*jobEntry),
	}
}

// GenerateRequest starts one pipeline run
type GenerateRequest struct {
	ThreadURL  string
	Background string // optional override of the script's background id
}

// Start registers a job and launches the pipeline for it. The script ID is
// generated here so polling clients have a key before the script itself
// exists; the synthesizer creates the Script under this same identity.
func (m *Manager) Start(req GenerateRequest) string {
	id := types.NewScriptID()

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.jobs[id] = &jobEntry{
		job: types.PipelineJob{
			ScriptID:  id,
			Status:    types.StagePending,
			CreatedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}
	m.mu.Unlock()

	go m.run(ctx, id, req)
	return id
}

func (m *Manager) run(ctx context.Context, id string, req GenerateRequest) {
	defer m.clearCancel(id)

	// Stage 1: fetch. Cannot fail; falls back to canned data.
	if !m.advance(id, types.StageFetching) {
		return
	}
	raw := m.fetcher.Fetch(ctx, req.ThreadURL)
	if m.cancelled(ctx, id) {
		return
	}

	// Stage 2: script synthesis. Cannot fail; falls back to the template.
	if !m.advance(id, types.StageScripting) {
		return
	}
	script := m.scripts.Synthesize(ctx, id, raw)
	if req.Background != "" {
		script.Background = req.Background
	}
	if m.cancelled(ctx, id) {
		return
	}

	// Stage 3: speech synthesis. Cannot fail; degrades to estimates.
	if !m.advance(id, types.StageAudio) {
		return
	}
	script = m.speech.Run(ctx, script)
	if m.cancelled(ctx, id) {
		return
	}

	// Stage 4: composition + render. The only stage whose errors are fatal.
	if !m.advance(id, types.StageRendering) {
		return
	}
	backgroundPath := filepath.Join(m.cfg.Paths.Backgrounds, script.Background)
	plan := m.builder.Build(script, m.probeBackground(backgroundPath))

	assets := render.Assets{BackgroundVideo: backgroundPath}
	for _, line := range script.Lines {
		assets.AudioFiles = append(assets.AudioFiles, line.AudioRef)
	}

	videoPath, err := m.renderer.Run(ctx, script, plan, assets)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			m.markCancelled(id)
			return
		}
		m.markFailed(id, err)
		return
	}
	if m.cancelled(ctx, id) {
		return
	}

	m.complete(id, videoPath)
}

// GetStatus returns a snapshot for polling clients
func (m *Manager) GetStatus(id string) (types.JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.jobs[id]
	if !ok {
		return types.JobStatus{}, ErrUnknownScript
	}

	status := types.JobStatus{
		ScriptID:   id,
		Stage:      entry.job.Status,
		Percentage: entry.progress,
		Message:    stageMessage[entry.job.Status],
		Error:      entry.job.Error,
	}
	if entry.job.Status == types.StageCompleted {
		status.VideoURL = "/videos/" + id + ".mp4"
	}
	return status, nil
}

// Cancel aborts an in-flight job. Cancelling a terminal job is a no-op, not
// an error; artifacts already produced by completed stages are left alone.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	entry, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownScript
	}
	if entry.job.Status.Terminal() {
		m.mu.Unlock()
		return nil
	}
	entry.job.Status = types.StageCancelled
	cancel := entry.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	log.Printf("[pipeline] Job %s cancelled", id)
	return nil
}

// advance moves a job to the next stage; it refuses to leave a terminal
// state, which is how a concurrent cancel wins the race.
func (m *Manager) advance(id string, stage types.Stage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.jobs[id]
	if !ok || entry.job.Status.Terminal() {
		return false
	}
	entry.job.Status = stage
	if p := stageProgress[stage]; p > entry.progress {
		entry.progress = p
	}
	log.Printf("[pipeline] Job %s → %s", id, stage)
	return true
}

func (m *Manager) cancelled(ctx context.Context, id string) bool {
	if ctx.Err() == nil {
		return false
	}
	m.markCancelled(id)
	return true
}

func (m *Manager) markCancelled(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.jobs[id]; ok && !entry.job.Status.Terminal() {
		entry.job.Status = types.StageCancelled
	}
}

func (m *Manager) markFailed(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.jobs[id]
	if !ok || entry.job.Status.Terminal() {
		return
	}
	entry.job.Status = types.StageFailed
	entry.job.Error = err.Error()
	log.Printf("[pipeline] ❌ Job %s failed: %v", id, err)
}

func (m *Manager) complete(id string, videoPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.jobs[id]
	if !ok || entry.job.Status.Terminal() {
		return
	}
	entry.job.Status = types.StageCompleted
	entry.job.VideoPath = videoPath
	entry.progress = stageProgress[types.StageCompleted]
	log.Printf("[pipeline] ✅ Job %s complete: %s", id, videoPath)
}

func (m *Manager) clearCancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.jobs[id]; ok {
		entry.cancel = nil
	}
}

// Jobs returns a snapshot of every known job
func (m *Manager) Jobs() []types.PipelineJob {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.PipelineJob, 0, len(m.jobs))
	for _, entry := range m.jobs {
		out = append(out, entry.job)
	}
	return out
}

// String implements fmt.Stringer for debug logging
func (m *Manager) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("pipeline.Manager(%d jobs)", len(m.jobs))
}
