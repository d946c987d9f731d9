//go:build whisper_cpp

package whisper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperd/internal/audio"
)

// engineCPP is the whisper.cpp-backed implementation of Engine.
type engineCPP struct {
	model   whisperpkg.Model
	threads uint
	mu      sync.Mutex // whisper.cpp contexts must not run concurrently
}

func NewEngine(modelPath string, threads int) (Engine, error) {
	m, err := whisperpkg.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	log.Info().Str("model", modelPath).Msg("whisper: model loaded")
	return &engineCPP{model: m, threads: uint(threads)}, nil
}

func (e *engineCPP) Close() error {
	if e.model != nil {
		e.model.Close()
	}
	return nil
}

// Transcribe runs a full-clip transcription. Calls are serialized on the
// engine mutex; concurrent requests queue here.
func (e *engineCPP) Transcribe(_ context.Context, samples []float32, opts Options) (Result, error) {
	res := Result{
		Language: normalizeLang(opts.Language),
		Duration: float64(len(samples)) / float64(audio.WhisperSampleRate),
	}
	if len(samples) == 0 {
		return res, nil
	}
	if opts.VADFilter && !audio.HasSpeech(samples) {
		log.Debug().Float64("duration", res.Duration).Msg("whisper: no speech detected, skipping model")
		return res, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wctx, err := e.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("create context: %w", err)
	}
	if e.threads > 0 {
		wctx.SetThreads(e.threads)
	}
	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}
	_ = wctx.SetLanguage(lang)
	if opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	wctx.SetTemperature(opts.Temperature)
	wctx.SetTokenTimestamps(true)
	wctx.SetMaxSegmentLength(0)
	wctx.SetMaxTokensPerSegment(0)
	wctx.SetAudioCtx(0)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		log.Error().Err(err).Int("samples", len(samples)).Msg("whisper: process failed")
		return Result{}, fmt.Errorf("process audio: %w", err)
	}

	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Msg("whisper: error reading segment")
			}
			break
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		res.Segments = append(res.Segments, Segment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  text,
		})
	}

	if detected := wctx.Language(); detected != "" && detected != "auto" {
		res.Language = detected
	} else if detected := wctx.DetectedLanguage(); detected != "" {
		res.Language = detected
	}

	log.Debug().
		Str("lang", res.Language).
		Int("segments", len(res.Segments)).
		Float64("duration", res.Duration).
		Msg("whisper: transcription complete")
	return res, nil
}

func normalizeLang(lang string) string {
	if lang == "auto" {
		return ""
	}
	return lang
}
