package whisper

import (
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperd/internal/config"
)

// Holder owns the process's single model handle. The handle is either absent
// (load failed or never attempted) or fully usable; requests only ever read
// it. Construct one at startup and pass it to the handlers.
type Holder struct {
	cfg    config.Config
	mu     sync.RWMutex
	engine Engine
}

func NewHolder(cfg config.Config) *Holder {
	return &Holder{cfg: cfg}
}

// Load constructs the engine from configuration. Any failure is logged and
// leaves the handle absent; it never propagates. A failed load is only
// retried by restarting the process.
func (h *Holder) Load() {
	threads := h.cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	path := h.cfg.ResolveModelPath()
	log.Info().
		Str("model", h.cfg.Model).
		Str("path", path).
		Str("device", h.cfg.Device).
		Str("computeType", h.cfg.ComputeType).
		Int("threads", threads).
		Msg("whisper: loading model")

	engine, err := NewEngine(path, threads)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("whisper: model load failed")
		return
	}
	h.mu.Lock()
	h.engine = engine
	h.mu.Unlock()
}

// Engine returns the handle, or false when transcription is unavailable.
func (h *Holder) Engine() (Engine, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine, h.engine != nil
}

func (h *Holder) Loaded() bool {
	_, ok := h.Engine()
	return ok
}

// ModelName reports the configured size tier, whether or not the load succeeded.
func (h *Holder) ModelName() string {
	return h.cfg.Model
}

// Unload closes and clears the handle. Used at shutdown.
func (h *Holder) Unload() {
	h.mu.Lock()
	engine := h.engine
	h.engine = nil
	h.mu.Unlock()
	if engine != nil {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Msg("whisper: engine close failed")
		}
	}
}
