package whisper

import (
	"context"
	"testing"

	"github.com/obiente/whisperd/internal/config"
)

type closeRecorder struct {
	closed bool
}

func (c *closeRecorder) Transcribe(context.Context, []float32, Options) (Result, error) {
	return Result{}, nil
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestHolderLoadFailureLeavesHandleAbsent(t *testing.T) {
	t.Setenv("WHISPER_MODEL_PATH", "/nonexistent/ggml-missing.bin")
	h := NewHolder(config.Load())

	// Must not panic or propagate; without the whisper_cpp backend (or with a
	// missing model file) the handle simply stays absent.
	h.Load()

	if h.Loaded() {
		t.Fatal("handle reported present after failed load")
	}
	if _, ok := h.Engine(); ok {
		t.Fatal("Engine() returned a handle after failed load")
	}
	if h.ModelName() != "small" {
		t.Errorf("ModelName() = %q, want configured tier regardless of load", h.ModelName())
	}
}

func TestHolderUnload(t *testing.T) {
	rec := &closeRecorder{}
	h := NewHolder(config.Load())
	h.engine = rec

	if !h.Loaded() {
		t.Fatal("handle should be present")
	}
	h.Unload()
	if h.Loaded() {
		t.Error("handle still present after Unload")
	}
	if !rec.closed {
		t.Error("engine not closed on Unload")
	}

	// Unload on an absent handle is a no-op.
	h.Unload()
}

func TestResultFullText(t *testing.T) {
	r := Result{Segments: []Segment{
		{Start: 0, End: 1, Text: "你好"},
		{Start: 1, End: 2, Text: "世界"},
		{Start: 2, End: 3, Text: "。"},
	}}
	if got := r.FullText(); got != "你好世界。" {
		t.Errorf("FullText() = %q", got)
	}
	if got := (Result{}).FullText(); got != "" {
		t.Errorf("FullText() on empty result = %q", got)
	}
}
