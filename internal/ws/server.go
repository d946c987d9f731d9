package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperd/internal/audio"
	"github.com/obiente/whisperd/internal/whisper"
)

// ModelProvider is the read side of the model holder.
type ModelProvider interface {
	Engine() (whisper.Engine, bool)
}

// Light decoding parameters for incremental passes over a growing buffer.
var liveOptions = whisper.Options{BeamSize: 3, BestOf: 3, Temperature: 0, VADFilter: true}

const (
	readDeadline  = 60 * time.Second
	workInterval  = time.Second
	maxBufSamples = 5 * 60 * audio.WhisperSampleRate
)

// Server handles live transcription sessions: the client streams binary
// PCM16LE frames and receives incremental transcripts of the buffer so far.
type Server struct {
	models   ModelProvider
	upgrader websocket.Upgrader
}

func NewServer(models ModelProvider) *Server {
	return &Server{
		models: models,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
	}
}

type controlEvent struct {
	Type       string `json:"type"` // "start" | "stop"
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

type transcriptEvent struct {
	Type     string            `json:"type"` // "transcript" | "error"
	Segments []whisper.Segment `json:"segments,omitempty"`
	Language string            `json:"language,omitempty"`
	Duration float64           `json:"duration,omitempty"`
	Final    bool              `json:"final,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.models.Engine()
	if !ok {
		http.Error(w, "whisper model not loaded", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	sess := &session{conn: conn, engine: engine, sampleRate: audio.WhisperSampleRate}
	defer sess.stopWorker()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("ws: read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		switch msgType {
		case websocket.BinaryMessage:
			if err := sess.appendPCM16(data); err != nil {
				sess.send(transcriptEvent{Type: "error", Error: err.Error()})
			}
		case websocket.TextMessage:
			var ev controlEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				sess.send(transcriptEvent{Type: "error", Error: "malformed control event"})
				continue
			}
			switch ev.Type {
			case "start":
				sess.start(ev)
			case "stop":
				sess.finish()
				return
			}
		}
	}
}

// session tracks one live transcription connection.
type session struct {
	conn   *websocket.Conn
	engine whisper.Engine

	writeMu sync.Mutex // gorilla allows a single concurrent writer

	mu         sync.Mutex
	samples    []float32
	processed  int // samples already covered by the last transcript sent
	language   string
	sampleRate int
	exit       chan struct{}
}

func (s *session) start(ev controlEvent) {
	s.mu.Lock()
	s.language = ev.Language
	if ev.SampleRate > 0 {
		s.sampleRate = ev.SampleRate
	}
	started := s.exit != nil
	if !started {
		s.exit = make(chan struct{})
	}
	s.mu.Unlock()

	if !started {
		go s.worker(s.exit)
	}
	s.send(transcriptEvent{Type: "ready"})
}

func (s *session) appendPCM16(frame []byte) error {
	pcm, err := audio.DecodePCM16LE(frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sampleRate != audio.WhisperSampleRate {
		pcm = audio.ResampleLinear(pcm, s.sampleRate, audio.WhisperSampleRate)
	}
	s.samples = append(s.samples, pcm...)
	if len(s.samples) > maxBufSamples {
		drop := len(s.samples) - maxBufSamples
		s.samples = s.samples[drop:]
		s.processed -= drop
		if s.processed < 0 {
			s.processed = 0
		}
	}
	return nil
}

// worker periodically re-transcribes the buffer when new audio has arrived.
func (s *session) worker(exit chan struct{}) {
	ticker := time.NewTicker(workInterval)
	defer ticker.Stop()
	for {
		select {
		case <-exit:
			return
		case <-ticker.C:
			s.transcribe(false)
		}
	}
}

func (s *session) transcribe(final bool) {
	s.mu.Lock()
	if !final && len(s.samples) == s.processed {
		s.mu.Unlock()
		return
	}
	buf := append([]float32(nil), s.samples...)
	lang := s.language
	s.processed = len(buf)
	s.mu.Unlock()

	if len(buf) == 0 {
		if final {
			s.send(transcriptEvent{Type: "transcript", Segments: []whisper.Segment{}, Final: true})
		}
		return
	}

	opts := liveOptions
	opts.Language = lang
	res, err := s.engine.Transcribe(context.Background(), buf, opts)
	if err != nil {
		log.Error().Err(err).Msg("ws: transcription failed")
		s.send(transcriptEvent{Type: "error", Error: err.Error()})
		return
	}
	s.send(transcriptEvent{
		Type:     "transcript",
		Segments: segmentsOrEmpty(res.Segments),
		Language: res.Language,
		Duration: res.Duration,
		Final:    final,
	})
}

// finish runs one last pass over everything buffered and closes cleanly.
func (s *session) finish() {
	s.stopWorker()
	s.transcribe(true)
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
}

func (s *session) stopWorker() {
	s.mu.Lock()
	exit := s.exit
	s.exit = nil
	s.mu.Unlock()
	if exit != nil {
		close(exit)
	}
}

func (s *session) send(ev transcriptEvent) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		log.Debug().Err(err).Msg("ws: write failed")
	}
}

func segmentsOrEmpty(segs []whisper.Segment) []whisper.Segment {
	if segs == nil {
		return []whisper.Segment{}
	}
	return segs
}
