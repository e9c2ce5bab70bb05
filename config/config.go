package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Script ScriptConfig `yaml:"script"`
	Audio  AudioConfig  `yaml:"audio"`
	Video  VideoConfig  `yaml:"video"`
	Render RenderConfig `yaml:"render"`
	Paths  PathsConfig  `yaml:"paths"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ScriptConfig struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	MaxComments int     `yaml:"max_comments"`
}

type AudioConfig struct {
	MaxCharsPerRequest int     `yaml:"max_chars_per_request"`
	RequestDelayMs     int     `yaml:"request_delay_ms"`
	LinePauseSec       float64 `yaml:"line_pause_sec"`
}

type VideoConfig struct {
	FPS                int     `yaml:"fps"`
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	TrailingBufferSec  float64 `yaml:"trailing_buffer_sec"`
	DefaultDurationSec float64 `yaml:"default_duration_sec"`
}

type RenderConfig struct {
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	EntryPoint  string   `yaml:"entry_point"`
	Composition string   `yaml:"composition"`
	TimeoutMin  int      `yaml:"timeout_min"`
}

type PathsConfig struct {
	TempDir     string `yaml:"temp_dir"`
	PublicDir   string `yaml:"public_dir"`
	Backgrounds string `yaml:"backgrounds"`
}

// Load reads config.yaml and fills in defaults for anything omitted
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config usable without a config.yaml on disk
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Script.Model == "" {
		c.Script.Model = "llama-3.1-70b-versatile"
	}
	if c.Script.MaxTokens == 0 {
		c.Script.MaxTokens = 2048
	}
	if c.Script.Temperature == 0 {
		c.Script.Temperature = 0.7
	}
	if c.Script.MaxComments == 0 {
		c.Script.MaxComments = 3
	}
	if c.Audio.MaxCharsPerRequest == 0 {
		c.Audio.MaxCharsPerRequest = 1000
	}
	if c.Audio.RequestDelayMs == 0 {
		c.Audio.RequestDelayMs = 3000
	}
	if c.Audio.LinePauseSec == 0 {
		c.Audio.LinePauseSec = 0.5
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 30
	}
	if c.Video.Width == 0 {
		c.Video.Width = 1080
	}
	if c.Video.Height == 0 {
		c.Video.Height = 1920
	}
	if c.Video.TrailingBufferSec == 0 {
		c.Video.TrailingBufferSec = 2.0
	}
	if c.Video.DefaultDurationSec == 0 {
		c.Video.DefaultDurationSec = 30.0
	}
	if c.Render.Command == "" {
		c.Render.Command = "npx"
	}
	if len(c.Render.Args) == 0 {
		c.Render.Args = []string{"remotion", "render"}
	}
	if c.Render.EntryPoint == "" {
		c.Render.EntryPoint = "src/remotion/index.ts"
	}
	if c.Render.Composition == "" {
		c.Render.Composition = "RedditVideo"
	}
	if c.Render.TimeoutMin == 0 {
		c.Render.TimeoutMin = 15
	}
	if c.Paths.TempDir == "" {
		c.Paths.TempDir = "temp"
	}
	if c.Paths.PublicDir == "" {
		c.Paths.PublicDir = "public"
	}
	if c.Paths.Backgrounds == "" {
		c.Paths.Backgrounds = "assets/backgrounds"
	}
}

// RenderTimeout is the bound on one renderer invocation
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutMin) * time.Minute
}

// LinePause is the fixed gap inserted between dialogue lines
func (c *Config) LinePause() float64 {
	return c.Audio.LinePauseSec
}
