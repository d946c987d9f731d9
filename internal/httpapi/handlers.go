package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperd/internal/whisper"
)

const defaultLanguage = "zh"

// Decoding parameter sets. The stream endpoint trades accuracy for latency
// with a narrower search.
var (
	fullOptions   = whisper.Options{BeamSize: 5, BestOf: 5, Temperature: 0, VADFilter: true}
	streamOptions = whisper.Options{BeamSize: 3, BestOf: 3, Temperature: 0, VADFilter: true}
)

// ModelProvider is the read side of the model holder.
type ModelProvider interface {
	Engine() (whisper.Engine, bool)
	ModelName() string
	Loaded() bool
}

// AudioLoader turns a staged audio file into model-ready samples.
// audio.Loader is the production implementation.
type AudioLoader interface {
	Load(ctx context.Context, path string) ([]float32, error)
}

// Server carries the handlers' dependencies; there is no ambient global.
type Server struct {
	models ModelProvider
	loader AudioLoader
}

func NewServer(models ModelProvider, loader AudioLoader) *Server {
	return &Server{models: models, loader: loader}
}

// NewRouter mounts the REST surface.
func NewRouter(s *Server) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/transcribe", s.handleTranscribe)
	r.Post("/transcribe-stream", s.handleTranscribeStream)
	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelName   string `json:"model_name"`
}

type transcriptionResponse struct {
	Text     string            `json:"text"`
	Language string            `json:"language"`
	Duration float64           `json:"duration"`
	Segments []whisper.Segment `json:"segments"`
}

type streamResponse struct {
	Segments []whisper.Segment `json:"segments"`
	Language string            `json:"language"`
	Duration float64           `json:"duration"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.models.Loaded() {
		status = "model_not_loaded"
	}
	writeJSON(w, healthResponse{
		Status:      status,
		ModelLoaded: s.models.Loaded(),
		ModelName:   s.models.ModelName(),
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	res, apiErr := s.transcribe(r, fullOptions)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, transcriptionResponse{
		Text:     res.FullText(),
		Language: res.Language,
		Duration: res.Duration,
		Segments: segmentsOrEmpty(res.Segments),
	})
}

func (s *Server) handleTranscribeStream(w http.ResponseWriter, r *http.Request) {
	res, apiErr := s.transcribe(r, streamOptions)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, streamResponse{
		Segments: segmentsOrEmpty(res.Segments),
		Language: res.Language,
		Duration: res.Duration,
	})
}

// transcribe is the shared request body: check the handle, stage the upload,
// decode, invoke the model, clean up. The model check precedes staging so an
// unavailable model writes no files.
func (s *Server) transcribe(r *http.Request, opts whisper.Options) (whisper.Result, *apiError) {
	engine, ok := s.models.Engine()
	if !ok {
		return whisper.Result{}, &apiError{
			kind: kindUnavailable,
			err:  errors.New("whisper model not loaded, check server logs"),
		}
	}

	upload, apiErr := stageUpload(r)
	if apiErr != nil {
		return whisper.Result{}, apiErr
	}
	defer upload.remove()

	opts.Language = r.FormValue("language")
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}

	samples, err := s.loader.Load(r.Context(), upload.path)
	if err != nil {
		return whisper.Result{}, &apiError{kind: kindBadUpload, err: fmt.Errorf("failed to read audio: %w", err)}
	}

	res, err := engine.Transcribe(r.Context(), samples, opts)
	if err != nil {
		return whisper.Result{}, &apiError{kind: kindTranscribe, err: fmt.Errorf("transcription failed: %w", err)}
	}

	log.Info().
		Str("audioHash", upload.hash).
		Str("lang", res.Language).
		Int("segments", len(res.Segments)).
		Float64("duration", res.Duration).
		Msg("transcribed")
	return res, nil
}

func segmentsOrEmpty(segs []whisper.Segment) []whisper.Segment {
	if segs == nil {
		return []whisper.Segment{}
	}
	return segs
}
