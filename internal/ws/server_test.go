package ws

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obiente/whisperd/internal/whisper"
)

type fakeEngine struct {
	mu      sync.Mutex
	gotOpts whisper.Options
	calls   int
}

func (e *fakeEngine) Transcribe(_ context.Context, samples []float32, opts whisper.Options) (whisper.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gotOpts = opts
	e.calls++
	return whisper.Result{
		Language: "zh",
		Duration: float64(len(samples)) / 16000.0,
		Segments: []whisper.Segment{{Start: 0, End: 1, Text: "测试"}},
	}, nil
}

func (e *fakeEngine) Close() error { return nil }

type fakeProvider struct {
	engine whisper.Engine
}

func (p *fakeProvider) Engine() (whisper.Engine, bool) {
	if p.engine == nil {
		return nil, false
	}
	return p.engine, true
}

func dialTest(t *testing.T, engine whisper.Engine) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(NewServer(&fakeProvider{engine: engine}).Handle))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func pcm16Frame(n int) []byte {
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(int16(5000)))
	}
	return b
}

func TestHandleRejectsWithoutModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(NewServer(&fakeProvider{}).Handle))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded without a loaded model")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("resp = %+v, want 503", resp)
	}
}

func TestLiveSession(t *testing.T) {
	engine := &fakeEngine{}
	conn, cleanup := dialTest(t, engine)
	defer cleanup()

	if err := conn.WriteJSON(controlEvent{Type: "start", Language: "zh", SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev transcriptEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "ready" {
		t.Fatalf("first event = %+v, want ready", ev)
	}

	// half a second of non-silent audio, then stop
	if err := conn.WriteMessage(websocket.BinaryMessage, pcm16Frame(8000)); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(controlEvent{Type: "stop"}); err != nil {
		t.Fatal(err)
	}

	// read until the final transcript; interim ticks may arrive first
	for {
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading events: %v", err)
		}
		if ev.Type == "error" {
			t.Fatalf("unexpected error event: %s", ev.Error)
		}
		if ev.Type == "transcript" && ev.Final {
			break
		}
	}
	if len(ev.Segments) != 1 || ev.Segments[0].Text != "测试" {
		t.Errorf("final transcript = %+v", ev)
	}
	if ev.Language != "zh" {
		t.Errorf("language = %q", ev.Language)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.calls == 0 {
		t.Fatal("engine never invoked")
	}
	if engine.gotOpts.BeamSize != 3 || engine.gotOpts.BestOf != 3 || !engine.gotOpts.VADFilter {
		t.Errorf("opts = %+v, want light decoding with VAD", engine.gotOpts)
	}
	if engine.gotOpts.Language != "zh" {
		t.Errorf("language hint = %q", engine.gotOpts.Language)
	}
}

func TestSessionResamplesInput(t *testing.T) {
	s := &session{sampleRate: 8000}
	if err := s.appendPCM16(pcm16Frame(4000)); err != nil {
		t.Fatal(err)
	}
	if len(s.samples) != 8000 {
		t.Errorf("samples = %d, want 8000 after 8k→16k resample", len(s.samples))
	}
}

func TestSessionBufferCap(t *testing.T) {
	s := &session{sampleRate: 16000}
	s.samples = make([]float32, maxBufSamples)
	s.processed = maxBufSamples
	if err := s.appendPCM16(pcm16Frame(1600)); err != nil {
		t.Fatal(err)
	}
	if len(s.samples) != maxBufSamples {
		t.Errorf("samples = %d, want capped at %d", len(s.samples), maxBufSamples)
	}
	if s.processed < 0 || s.processed > len(s.samples) {
		t.Errorf("processed offset %d out of range", s.processed)
	}
}
