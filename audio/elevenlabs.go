package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"reddit-reels/config"
)

// VoiceClient is the voice-synthesis collaborator. The stage owns speaker-to-
// voice mapping and duration policy; the client owns transport and rate
// limiting.
type VoiceClient interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	// CheckAccess verifies the service is reachable and the account usable.
	// An error here sends the whole stage down the estimated-timeline path.
	CheckAccess(ctx context.Context) error
}

// Voice IDs for the built-in ElevenLabs voices used per speaker role
var voiceMap = map[string]string{
	"narrator":   "pNInz6obpgDQGcFmaJgB", // Adam
	"op":         "EXAVITQu4vr4xnSDxMaL", // Sarah
	"commenter1": "21m00Tcm4TlvDq8ikWAM", // Rachel
	"commenter2": "VR6AewLTigWG4xSOukaG", // Josh
	"male":       "VR6AewLTigWG4xSOukaG",
	"female":     "21m00Tcm4TlvDq8ikWAM",
}

// VoiceForSpeaker maps a speaker name to a voice ID. The lookup is
// case-insensitive with whitespace stripped; unmapped speakers get the
// narrator voice.
func VoiceForSpeaker(speaker string) string {
	key := strings.ToLower(strings.Join(strings.Fields(speaker), ""))
	if id, ok := voiceMap[key]; ok {
		return id
	}
	return voiceMap["narrator"]
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type usageResponse struct {
	Subscription struct {
		CharacterCount int `json:"character_count"`
		CharacterLimit int `json:"character_limit"`
	} `json:"subscription"`
}

// ElevenLabsClient talks to the ElevenLabs text-to-speech API. Requests are
// spaced out by a fixed delay because the pipeline deliberately issues them
// one at a time.
type ElevenLabsClient struct {
	baseURL    string
	httpClient *http.Client
	delay      time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

func NewElevenLabsClient(cfg *config.Config) *ElevenLabsClient {
	return &ElevenLabsClient{
		baseURL:    "https://api.elevenlabs.io/v1",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		delay:      time.Duration(cfg.Audio.RequestDelayMs) * time.Millisecond,
	}
}

// Synthesize generates speech audio for the given text and voice
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY not set")
	}

	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	payload := ttsRequest{
		Text:    text,
		ModelID: "eleven_monolingual_v1",
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
		},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("invalid ElevenLabs API key")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("ElevenLabs rate limit exceeded")
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts returned empty audio")
	}
	return audio, nil
}

// CheckAccess queries account usage; a missing key, auth failure, or an
// exhausted character quota all disqualify the service for this run.
func (c *ElevenLabsClient) CheckAccess(ctx context.Context) error {
	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY not set")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/user", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("usage check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid ElevenLabs API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("usage check failed (%d)", resp.StatusCode)
	}

	var usage usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return fmt.Errorf("parse usage response: %w", err)
	}
	if usage.Subscription.CharacterLimit > 0 &&
		usage.Subscription.CharacterCount >= usage.Subscription.CharacterLimit {
		return fmt.Errorf("character limit reached (%d/%d)",
			usage.Subscription.CharacterCount, usage.Subscription.CharacterLimit)
	}
	return nil
}

func (c *ElevenLabsClient) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	wait := c.delay - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
