package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"reddit-reels/api"
	"reddit-reels/audio"
	"reddit-reels/config"
	"reddit-reels/pipeline"
	"reddit-reels/render"
	"reddit-reels/script"
	"reddit-reels/thread"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env (local dev only; deployment injects real env vars)
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s (%v), using defaults", cfgPath, err)
		cfg = config.Default()
	}

	// Ensure required dirs exist
	for _, dir := range []string{
		cfg.Paths.TempDir,
		filepath.Join(cfg.Paths.PublicDir, "videos"),
		cfg.Paths.Backgrounds,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create dir %s: %v", dir, err)
		}
	}

	manager := pipeline.NewManager(
		cfg,
		thread.New(cfg.Script.MaxComments),
		script.New(cfg, script.NewGroqClient(cfg)),
		audio.New(cfg, audio.NewElevenLabsClient(cfg)),
		render.New(cfg),
	)

	router := api.SetupRouter(cfg, manager)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("🎬 Reddit reels service listening on http://%s", addr)
	log.Printf("📁 Temp dir: %s | Public dir: %s", cfg.Paths.TempDir, cfg.Paths.PublicDir)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
