package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/session"
)

func newTestNegotiator(url string) *Negotiator {
	return NewNegotiator(url, nil, &session.State{}, nil, zerolog.Nop())
}

func TestExchangeOffer_ParsesAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var offer SessionDescription
		if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
			t.Errorf("decode offer: %v", err)
		}
		if offer.Type != "offer" || offer.SDP == "" {
			t.Errorf("unexpected offer payload: %+v", offer)
		}
		_ = json.NewEncoder(w).Encode(AnswerResponse{SDP: "v=0\r\n", Type: "answer", SessionID: 42})
	}))
	defer srv.Close()

	n := newTestNegotiator(srv.URL)
	ans, err := n.exchangeOffer(context.Background(), SessionDescription{SDP: "v=0\r\n", Type: "offer"})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if ans.SessionID != 42 {
		t.Fatalf("sessionid = %d, want 42", ans.SessionID)
	}
}

func TestExchangeOffer_HTTPErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no free slots", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := newTestNegotiator(srv.URL)
	_, err := n.exchangeOffer(context.Background(), SessionDescription{SDP: "v=0\r\n", Type: "offer"})
	var ne *NegotiationError
	if !errors.As(err, &ne) {
		t.Fatalf("got %v, want NegotiationError", err)
	}
	if ne.Status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", ne.Status)
	}
}

func TestExchangeOffer_TimeoutIsDistinct(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	n := newTestNegotiator(srv.URL)
	n.offerTimeout = 50 * time.Millisecond
	_, err := n.exchangeOffer(context.Background(), SessionDescription{SDP: "v=0\r\n", Type: "offer"})
	if !errors.Is(err, ErrOfferTimeout) {
		t.Fatalf("got %v, want ErrOfferTimeout", err)
	}
	var ne *NegotiationError
	if errors.As(err, &ne) {
		t.Fatalf("timeout must not read as an HTTP status error")
	}
}

func TestExchangeOffer_RejectsInvalidAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "offer"})
	}))
	defer srv.Close()

	n := newTestNegotiator(srv.URL)
	if _, err := n.exchangeOffer(context.Background(), SessionDescription{SDP: "v=0\r\n", Type: "offer"}); err == nil {
		t.Fatalf("expected error for invalid answer payload")
	}
}

func TestMediaSession_WaitConnectedFailure(t *testing.T) {
	ms := &MediaSession{
		sess:        &session.State{},
		connectedCh: make(chan struct{}),
		failedCh:    make(chan struct{}),
	}
	ms.signal(ms.failedCh)
	if err := ms.WaitConnected(context.Background()); !errors.Is(err, ErrICEFailed) {
		t.Fatalf("got %v, want ErrICEFailed", err)
	}
	// signal is idempotent
	ms.signal(ms.failedCh)
}
