package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"reddit-reels/config"
	"reddit-reels/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const systemPrompt = `You are an expert content creator who converts Reddit threads into engaging short-form video scripts.

Your task:
1. Analyze the Reddit thread content
2. Create a structured dialogue script with clear speakers
3. Keep it engaging and under 60 seconds when spoken

You MUST respond with ONLY valid JSON, no preamble, no markdown, no explanation.

Output format:
{
  "lines": [
    {"speaker": "narrator|op|commenter1|commenter2", "text": "dialogue text"}
  ],
  "background": "suggested background video id",
  "characters": ["speaker ids used"]
}`

// scriptSchema is the contract the generative response must satisfy before
// anything downstream touches it
const scriptSchema = `{
  "type": "object",
  "required": ["lines"],
  "properties": {
    "lines": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["speaker", "text"],
        "properties": {
          "speaker": {"type": "string", "minLength": 1},
          "text": {"type": "string", "minLength": 1}
        }
      }
    },
    "background": {"type": "string"},
    "characters": {"type": "array", "items": {"type": "string"}}
  }
}`

var compiledSchema = jsonschema.MustCompileString("script.schema.json", scriptSchema)

// DefaultBackground is used whenever the generative response omits one
const DefaultBackground = "default-background.mp4"

const maxFallbackBodyChars = 300

// scriptJSON is the raw shape parsed out of the generative response
type scriptJSON struct {
	Lines []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"lines"`
	Background string   `json:"background"`
	Characters []string `json:"characters"`
}

// Synthesizer turns a raw thread into a Script. It cannot fail: any error
// from the generative service or its response is absorbed by a deterministic
// template fallback.
type Synthesizer struct {
	cfg *config.Config
	gen TextGenerator
}

func New(cfg *config.Config, gen TextGenerator) *Synthesizer {
	return &Synthesizer{cfg: cfg, gen: gen}
}

// Synthesize produces a valid Script for the thread under the given identity.
// The returned script always has at least one line and a non-empty background.
func (s *Synthesizer) Synthesize(ctx context.Context, id string, raw *types.RawThread) types.Script {
	log.Printf("[script] Generating script for thread: %q", raw.Title)

	script, err := s.generate(ctx, id, raw)
	if err != nil {
		log.Printf("[script] %v, using template fallback", err)
		return s.Fallback(id, raw)
	}
	log.Printf("[script] ✅ Script ready: %d lines", len(script.Lines))
	return script
}

func (s *Synthesizer) generate(ctx context.Context, id string, raw *types.RawThread) (types.Script, error) {
	if raw == nil || strings.TrimSpace(raw.Title) == "" {
		return types.Script{}, fmt.Errorf("thread has no title")
	}
	if s.gen == nil {
		return types.Script{}, fmt.Errorf("no text generator configured")
	}

	content, err := s.gen.Generate(ctx, systemPrompt, buildUserPrompt(raw, s.cfg.Script.MaxComments))
	if err != nil {
		return types.Script{}, fmt.Errorf("generative call: %w", err)
	}

	parsed, err := parseAndValidate(content)
	if err != nil {
		return types.Script{}, err
	}

	lines := make([]types.DialogueLine, 0, len(parsed.Lines))
	for _, l := range parsed.Lines {
		lines = append(lines, types.DialogueLine{
			Speaker: strings.TrimSpace(l.Speaker),
			Text:    strings.TrimSpace(l.Text),
		})
	}
	background := parsed.Background
	if background == "" {
		background = DefaultBackground
	}
	return types.NewScript(id, lines, background, parsed.Characters), nil
}

// parseAndValidate applies the parse-then-validate rule: the response must
// be an object matching the script schema, with every speaker and text
// non-empty after trimming. Anything else is a SchemaValidationError.
func parseAndValidate(content string) (*scriptJSON, error) {
	content = stripFences(content)

	var payload any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, &types.SchemaValidationError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if err := compiledSchema.Validate(payload); err != nil {
		return nil, &types.SchemaValidationError{Reason: err.Error()}
	}

	var parsed scriptJSON
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, &types.SchemaValidationError{Reason: fmt.Sprintf("unexpected shape: %v", err)}
	}
	for i, l := range parsed.Lines {
		if strings.TrimSpace(l.Speaker) == "" || strings.TrimSpace(l.Text) == "" {
			return nil, &types.SchemaValidationError{Reason: fmt.Sprintf("line %d has blank speaker or text", i)}
		}
	}
	return &parsed, nil
}

func buildUserPrompt(raw *types.RawThread, maxComments int) string {
	var sb strings.Builder
	sb.WriteString("Convert this Reddit thread into a short-form video script:\n\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", raw.Title))
	if raw.Author != "" {
		sb.WriteString(fmt.Sprintf("Author: %s\n", raw.Author))
	}
	sb.WriteString(fmt.Sprintf("Content: %s\n", raw.Body))

	if len(raw.Comments) > 0 {
		sb.WriteString("\nTop Comments:\n")
		for i, c := range raw.Comments {
			if maxComments > 0 && i >= maxComments {
				break
			}
			sb.WriteString(fmt.Sprintf("%d. %s: %s\n", i+1, c.Author, c.Content))
		}
	}

	sb.WriteString("\nCreate an engaging dialogue script that captures the essence of this thread. Respond ONLY with valid JSON.")
	return sb.String()
}

// Fallback builds the fixed-shape template script: intro, the OP's words,
// up to max_comments commenter lines, and a closing call to action. It never
// fails and always yields a valid script.
func (s *Synthesizer) Fallback(id string, raw *types.RawThread) types.Script {
	title := "an unbelievable Reddit thread"
	body := ""
	var comments []types.RawComment
	if raw != nil {
		if strings.TrimSpace(raw.Title) != "" {
			title = strings.TrimSpace(raw.Title)
		}
		body = strings.TrimSpace(raw.Body)
		comments = raw.Comments
	}

	lines := []types.DialogueLine{
		{Speaker: "narrator", Text: fmt.Sprintf("Today on Reddit: %s", title)},
	}

	if body == "" {
		body = title
	}
	lines = append(lines, types.DialogueLine{Speaker: "op", Text: truncate(body, maxFallbackBodyChars)})

	for i, c := range comments {
		if i >= s.cfg.Script.MaxComments {
			break
		}
		text := strings.TrimSpace(c.Content)
		if text == "" {
			continue
		}
		lines = append(lines, types.DialogueLine{
			Speaker: fmt.Sprintf("commenter%d", i+1),
			Text:    truncate(text, maxFallbackBodyChars),
		})
	}

	lines = append(lines, types.DialogueLine{
		Speaker: "narrator",
		Text:    "What would you have done? Let us know in the comments.",
	})

	return types.NewScript(id, lines, DefaultBackground, nil)
}

// stripFences removes markdown code fences some models wrap JSON in
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
