package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/avatar"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/conversation"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/rtc"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/session"
)

type fakeConv struct {
	mode   conversation.Mode
	resets int
}

func (f *fakeConv) Mode() conversation.Mode { return f.mode }
func (f *fakeConv) Reset()                  { f.resets++ }

type fakeAvatar struct {
	speaking   bool
	sendErr    error
	interErr   error
	sentTexts  []string
	interrupts int
}

func (f *fakeAvatar) SendText(_ context.Context, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentTexts = append(f.sentTexts, text)
	return nil
}

func (f *fakeAvatar) Interrupt(context.Context) error {
	if f.interErr != nil {
		return f.interErr
	}
	f.interrupts++
	return nil
}

func (f *fakeAvatar) Speaking() bool { return f.speaking }

type fakeMedia struct {
	startErr error
	active   bool
	stops    int
}

func (f *fakeMedia) Start(context.Context, rtc.Callbacks) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}
func (f *fakeMedia) Stop() error  { f.stops++; f.active = false; return nil }
func (f *fakeMedia) Active() bool { return f.active }

type fakeStream struct {
	connected bool
	recording bool
}

func (f *fakeStream) Connected() bool { return f.connected }
func (f *fakeStream) Recording() bool { return f.recording }

type fixture struct {
	srv    *Server
	conv   *fakeConv
	av     *fakeAvatar
	media  *fakeMedia
	stream *fakeStream
	sess   *session.State
}

func newFixture() *fixture {
	f := &fixture{
		conv:   &fakeConv{},
		av:     &fakeAvatar{},
		media:  &fakeMedia{},
		stream: &fakeStream{},
		sess:   &session.State{},
	}
	f.srv = New(f.conv, f.av, f.media, f.stream, f.sess, zerolog.Nop())
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.srv.Router.ServeHTTP(w, r)
	return w
}

func TestServer_Healthz(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStatus_ReflectsComponents(t *testing.T) {
	f := newFixture()
	f.conv.mode = conversation.ModeContinuous
	f.av.speaking = true
	f.stream.connected = true
	f.stream.recording = true
	f.media.active = true
	f.sess.Set(42)

	w := f.do(http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != "continuous" || got.SessionID != 42 || !got.AvatarSpeaking || !got.TranscriptionConnected || !got.Recording || !got.MediaActive {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestStart_Success(t *testing.T) {
	f := newFixture()
	f.sess.Set(7)
	w := f.do(http.MethodPost, "/api/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !f.media.active {
		t.Fatalf("media start not invoked")
	}
}

func TestStart_OfferTimeoutMapsToGatewayTimeout(t *testing.T) {
	f := newFixture()
	f.media.startErr = rtc.ErrOfferTimeout
	w := f.do(http.MethodPost, "/api/start", "")
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
}

func TestStart_PendingNegotiationMapsToConflict(t *testing.T) {
	f := newFixture()
	f.media.startErr = rtc.ErrStartPending
	w := f.do(http.MethodPost, "/api/start", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestStart_NegotiationErrorMapsToBadGateway(t *testing.T) {
	f := newFixture()
	f.media.startErr = &rtc.NegotiationError{Status: 503, StatusText: "503 Service Unavailable"}
	w := f.do(http.MethodPost, "/api/start", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestStop(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/stop", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if f.media.stops != 1 {
		t.Fatalf("stop not invoked")
	}
}

func TestSay_ForwardsText(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/say", `{"text":"welcome to the kiosk"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(f.av.sentTexts) != 1 || f.av.sentTexts[0] != "welcome to the kiosk" {
		t.Fatalf("texts = %v", f.av.sentTexts)
	}
}

func TestSay_EmptyText(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/say", `{"text":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSay_NoSessionIsConflict(t *testing.T) {
	f := newFixture()
	f.av.sendErr = avatar.ErrInvalidSession
	w := f.do(http.MethodPost, "/api/say", `{"text":"hello"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestInterrupt(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/interrupt", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if f.av.interrupts != 1 {
		t.Fatalf("interrupt not invoked")
	}
}

func TestReset(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/reset", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if f.conv.resets != 1 {
		t.Fatalf("reset not invoked")
	}
}
