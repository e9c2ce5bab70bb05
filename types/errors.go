package types

import "fmt"

// FetchError means the thread source was unreachable or the URL was invalid.
// It is absorbed by the fetch stage, which substitutes canned data.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch thread %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SchemaValidationError means the generative response did not match the
// required script schema. The synthesizer absorbs it via the template
// fallback.
type SchemaValidationError struct {
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return "script response failed validation: " + e.Reason
}

// VoiceSynthesisError means a speech request failed for one line or the
// voice service is unusable outright. Absorbed with placeholder audio and
// estimated durations.
type VoiceSynthesisError struct {
	LineIndex int
	Err       error
}

func (e *VoiceSynthesisError) Error() string {
	return fmt.Sprintf("voice synthesis for line %d: %v", e.LineIndex, e.Err)
}

func (e *VoiceSynthesisError) Unwrap() error { return e.Err }

// RenderError is fatal to the request: timeout, non-zero exit, or a missing
// output file. It carries the renderer's captured output for diagnosis.
type RenderError struct {
	ScriptID string
	Reason   string
	Output   string
}

func (e *RenderError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("render %s: %s", e.ScriptID, e.Reason)
	}
	return fmt.Sprintf("render %s: %s\nrenderer output:\n%s", e.ScriptID, e.Reason, e.Output)
}
