// Package pipeline orchestrates one clinical run: ingestion, extraction fan-out,
// validation, per-document results, then the timeline and chunk views over
// the merged mention list.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// Step names recorded on PipelineState and in logs.
const (
	StepIngestion  = "ingestion"
	StepExtraction = "clinical_nlp"
	StepValidation = "validation"
	StepResults    = "results"
	StepTimeline   = "timeline"
	StepChunking   = "chunking"
	StepPublish    = "publish"
)

// StepError is a recoverable failure recorded during a run.
type StepError struct {
	Step   string `json:"step"`
	Source string `json:"source,omitempty"`
	Err    error  `json:"-"`
}

func (e StepError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Step, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e StepError) Unwrap() error { return e.Err }

// PipelineState accumulates everything one run produces. Steps append to
// Errors and continue.
type PipelineState struct {
	RunID       string   `json:"run_id"`
	CurrentStep string   `json:"current_step"`
	FilePaths   []string `json:"file_paths,omitempty"`

	Documents     []clinical.Document       `json:"documents"`
	Results       []clinical.DocumentResult `json:"results"`
	Mentions      []clinical.EntityMention  `json:"mentions"`
	CanonicalDate *string                   `json:"canonical_date"`
	Timeline      clinical.Timeline         `json:"timeline"`
	Chunks        []clinical.Chunk          `json:"chunks"`

	// DocTypes maps a source to the type detected at extraction.
	DocTypes map[string]string `json:"doc_types"`

	Errors    []StepError `json:"-"`
	StartedAt time.Time   `json:"started_at"`
}

// NewState starts a run over paths.
func NewState(paths []string) *PipelineState {
	return &PipelineState{
		RunID:     uuid.NewString(),
		FilePaths: paths,
		DocTypes:  make(map[string]string),
		StartedAt: time.Now().UTC(),
	}
}

// AddError records err against step.
func (s *PipelineState) AddError(step, source string, err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, StepError{Step: step, Source: source, Err: err})
}

// ErrorMessages renders Errors for display and JSON output.
func (s *PipelineState) ErrorMessages() []string {
	out := make([]string, len(s.Errors))
	for i, e := range s.Errors {
		out[i] = e.Error()
	}
	return out
}

// ErrorsFor returns the errors recorded for step.
func (s *PipelineState) ErrorsFor(step string) []StepError {
	var out []StepError
	for _, e := range s.Errors {
		if e.Step == step {
			out = append(out, e)
		}
	}
	return out
}

//Personal.AI order the ending
