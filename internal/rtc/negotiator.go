// Package rtc negotiates the WebRTC media session with the avatar backend
// and routes the inbound audio track to local playback.
package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/session"
)

// ErrOfferTimeout means the backend did not answer the offer in time.
var ErrOfferTimeout = errors.New("offer exchange timed out")

// ErrICEFailed means the peer connection failed after negotiation.
var ErrICEFailed = errors.New("ice connection failed")

// NegotiationError is a non-2xx response from the offer endpoint.
type NegotiationError struct {
	Status     int
	StatusText string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("offer rejected with status %d %s", e.Status, e.StatusText)
}

// SessionDescription is the offer payload the backend expects.
type SessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// AnswerResponse is the backend's reply carrying the session id used by the
// avatar control API.
type AnswerResponse struct {
	SDP       string `json:"sdp"`
	Type      string `json:"type"`
	SessionID int64  `json:"sessionid"`
}

// PCMSink consumes decoded 48kHz mono avatar audio.
type PCMSink interface {
	PlayPCM(samples []int16)
}

// Callbacks surface connection state transitions. Any field may be nil.
type Callbacks struct {
	OnConnected    func()
	OnDisconnected func()
	OnFailed       func()
}

// Negotiator performs the offer/answer exchange. It never retries on its
// own: a failed negotiation is surfaced and the caller decides; each Start
// builds a brand-new peer connection.
type Negotiator struct {
	offerURL     string
	iceServers   []webrtc.ICEServer
	http         *http.Client
	sess         *session.State
	sink         PCMSink
	log          zerolog.Logger
	offerTimeout time.Duration
}

// NewNegotiator builds a negotiator. sink may be nil when local playback is
// disabled.
func NewNegotiator(offerURL string, iceServers []webrtc.ICEServer, sess *session.State, sink PCMSink, log zerolog.Logger) *Negotiator {
	return &Negotiator{
		offerURL:     offerURL,
		iceServers:   iceServers,
		http:         &http.Client{},
		sess:         sess,
		sink:         sink,
		log:          log,
		offerTimeout: 10 * time.Second,
	}
}

// MediaSession is a live negotiated peer connection.
type MediaSession struct {
	pc   *webrtc.PeerConnection
	sess *session.State
	log  zerolog.Logger

	connectedCh chan struct{}
	failedCh    chan struct{}
}

// Start negotiates a new media session: create a receive-only offer, wait for
// ICE gathering to complete, post the offer, and apply the answer. The
// returned session id is published to the shared session state.
func (n *Negotiator) Start(ctx context.Context, cb Callbacks) (*MediaSession, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: n.iceServers})
	if err != nil {
		return nil, err
	}

	ms := &MediaSession{
		pc:          pc,
		sess:        n.sess,
		log:         n.log,
		connectedCh: make(chan struct{}),
		failedCh:    make(chan struct{}),
	}

	// the avatar only sends media; we never publish any
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = pc.Close()
		return nil, err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = pc.Close()
		return nil, err
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		n.handleTrack(remote)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		n.log.Info().Str("state", state.String()).Msg("peer connection state")
		switch state {
		case webrtc.PeerConnectionStateConnected:
			ms.signal(ms.connectedCh)
			if cb.OnConnected != nil {
				cb.OnConnected()
			}
		case webrtc.PeerConnectionStateDisconnected:
			if cb.OnDisconnected != nil {
				cb.OnDisconnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			n.sess.Clear()
			ms.signal(ms.failedCh)
			if state == webrtc.PeerConnectionStateFailed && cb.OnFailed != nil {
				cb.OnFailed()
			}
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		n.log.Debug().Str("state", state.String()).Msg("ice state")
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		_ = pc.Close()
		return nil, ctx.Err()
	}
	local := pc.LocalDescription()
	if local == nil {
		_ = pc.Close()
		return nil, errors.New("no local description after gathering")
	}

	ans, err := n.exchangeOffer(ctx, SessionDescription{SDP: local.SDP, Type: "offer"})
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: ans.SDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("apply answer: %w", err)
	}

	n.sess.Set(ans.SessionID)
	n.log.Info().Int64("sessionid", ans.SessionID).Msg("media session negotiated")
	return ms, nil
}

// exchangeOffer posts the local description and parses the answer. The
// request is aborted after the offer timeout, which is reported distinctly
// from HTTP-level rejections.
func (n *Negotiator) exchangeOffer(ctx context.Context, offer SessionDescription) (AnswerResponse, error) {
	payload, err := json.Marshal(offer)
	if err != nil {
		return AnswerResponse{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, n.offerTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.offerURL, bytes.NewReader(payload))
	if err != nil {
		return AnswerResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return AnswerResponse{}, ErrOfferTimeout
		}
		return AnswerResponse{}, fmt.Errorf("offer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AnswerResponse{}, &NegotiationError{Status: resp.StatusCode, StatusText: resp.Status}
	}

	var ans AnswerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ans); err != nil {
		return AnswerResponse{}, fmt.Errorf("unparseable answer: %w", err)
	}
	if ans.SDP == "" || ans.Type != "answer" {
		return AnswerResponse{}, fmt.Errorf("invalid answer payload: type=%q", ans.Type)
	}
	return ans, nil
}

func (ms *MediaSession) signal(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// WaitConnected blocks until the connection is established, the connection
// fails, or ctx expires.
func (ms *MediaSession) WaitConnected(ctx context.Context) error {
	select {
	case <-ms.connectedCh:
		return nil
	case <-ms.failedCh:
		return ErrICEFailed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the peer connection down and invalidates the session id.
func (ms *MediaSession) Close() error {
	ms.sess.Clear()
	return ms.pc.Close()
}
