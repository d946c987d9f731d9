package whisper

import (
	"context"
	"strings"
)

// Options control a single transcription pass.
type Options struct {
	// Language hint ("zh", "en", ...). Empty or "auto" lets the model detect.
	Language string
	// Beam search width. Zero keeps the engine default.
	BeamSize int
	// Number of candidates when sampling. Not every backend honors it.
	BestOf int
	// Sampling temperature; zero is greedy decoding.
	Temperature float32
	// Skip the model entirely when the clip carries no detectable speech.
	VADFilter bool
}

// Segment is a contiguous span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the outcome of one transcription pass.
type Result struct {
	Language string
	Duration float64
	Segments []Segment
}

// FullText concatenates the segment texts with no separator. Segment texts
// are already whitespace-trimmed by the engine.
func (r Result) FullText() string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Engine is the loaded transcription model. Implementations must be safe for
// concurrent Transcribe calls; the whisper.cpp engine serializes internally.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error)
	Close() error
}
