package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"reddit-reels/compose"
	"reddit-reels/config"
	"reddit-reels/types"
)

// Assets names the files the renderer composites
type Assets struct {
	BackgroundVideo string   `json:"background_video"`
	AudioFiles      []string `json:"audio_files"`
}

// renderProps is the descriptor written for the renderer: the timed script,
// the composition plan, and the asset references, addressed by script ID.
type renderProps struct {
	Script types.Script `json:"script"`
	Plan   compose.Plan `json:"plan"`
	Assets Assets       `json:"assets"`
}

// Invoker supervises the external renderer: it writes the composition inputs
// to a working area, runs the renderer with a bounded timeout and output
// buffer, and verifies the declared output file actually exists. It never
// retries; rendering is expensive and retrying is the caller's call.
type Invoker struct {
	cfg *config.Config

	// buildCmd is swapped by tests; the default builds the configured
	// renderer command line.
	buildCmd func(ctx context.Context, propsFile, outputPath string) *exec.Cmd
}

func New(cfg *config.Config) *Invoker {
	inv := &Invoker{cfg: cfg}
	inv.buildCmd = inv.defaultCmd
	return inv
}

func (inv *Invoker) defaultCmd(ctx context.Context, propsFile, outputPath string) *exec.Cmd {
	args := append([]string(nil), inv.cfg.Render.Args...)
	args = append(args,
		inv.cfg.Render.EntryPoint,
		inv.cfg.Render.Composition,
		outputPath,
		"--props="+propsFile,
		"--codec", "h264",
	)
	return exec.CommandContext(ctx, inv.cfg.Render.Command, args...)
}

// Run renders the script and returns the final video path. Failures are
// RenderErrors carrying the script ID and the renderer's captured output.
func (inv *Invoker) Run(ctx context.Context, script types.Script, plan compose.Plan, assets Assets) (string, error) {
	log.Printf("[render] Rendering script %s (%d frames)", script.ID, plan.TotalFrames)

	workDir := filepath.Join(inv.cfg.Paths.TempDir, script.ID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", &types.RenderError{ScriptID: script.ID, Reason: fmt.Sprintf("create work dir: %v", err)}
	}

	videoDir := filepath.Join(inv.cfg.Paths.PublicDir, "videos")
	if err := os.MkdirAll(videoDir, 0755); err != nil {
		return "", &types.RenderError{ScriptID: script.ID, Reason: fmt.Sprintf("create video dir: %v", err)}
	}
	outputPath := filepath.Join(videoDir, script.ID+".mp4")

	propsFile := filepath.Join(workDir, "props.json")
	if err := writeProps(propsFile, renderProps{Script: script, Plan: plan, Assets: assets}); err != nil {
		return "", &types.RenderError{ScriptID: script.ID, Reason: fmt.Sprintf("write props: %v", err)}
	}
	defer inv.cleanup(workDir, propsFile)

	renderCtx, cancel := context.WithTimeout(ctx, inv.cfg.RenderTimeout())
	defer cancel()

	output := newBoundedBuffer(64 * 1024)
	cmd := inv.buildCmd(renderCtx, propsFile, outputPath)
	cmd.Stdout = output
	cmd.Stderr = output

	err := cmd.Run()
	if err != nil {
		reason := fmt.Sprintf("renderer failed: %v", err)
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("renderer timed out after %s", inv.cfg.RenderTimeout())
		} else if errors.Is(renderCtx.Err(), context.Canceled) {
			return "", renderCtx.Err()
		}
		return "", &types.RenderError{ScriptID: script.ID, Reason: reason, Output: output.String()}
	}

	// Exit 0 with no output file is a failure, not a silent success.
	info, statErr := os.Stat(outputPath)
	if statErr != nil || info.Size() == 0 {
		return "", &types.RenderError{
			ScriptID: script.ID,
			Reason:   "renderer exited 0 but produced no output file",
			Output:   output.String(),
		}
	}

	log.Printf("[render] ✅ Final video ready: %s (%d bytes)", outputPath, info.Size())
	return outputPath, nil
}

func writeProps(path string, props renderProps) error {
	data, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// cleanup removes transient render inputs. Per-line audio artifacts and any
// already-produced final output are preserved.
func (inv *Invoker) cleanup(workDir, propsFile string) {
	if err := os.Remove(propsFile); err != nil && !os.IsNotExist(err) {
		log.Printf("[render] cleanup warning: %v", err)
	}
	// The work dir stays if the audio artifacts live under it.
	entries, err := os.ReadDir(workDir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(workDir)
	}
}
