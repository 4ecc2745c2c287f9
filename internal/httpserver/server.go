// Package httpserver exposes the local control API consumed by the kiosk UI
// shell: status, media session control, speak/interrupt, and mode reset.
package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/avatar"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/conversation"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/rtc"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/session"
)

// Conversation is the coordinator surface the API needs.
type Conversation interface {
	Mode() conversation.Mode
	Reset()
}

// Avatar is the control channel surface the API needs.
type Avatar interface {
	SendText(ctx context.Context, text string) error
	Interrupt(ctx context.Context) error
	Speaking() bool
}

// Media drives the WebRTC session lifecycle.
type Media interface {
	Start(ctx context.Context, cb rtc.Callbacks) error
	Stop() error
	Active() bool
}

// Stream reports transcription connectivity.
type Stream interface {
	Connected() bool
	Recording() bool
}

// Server bundles the router and its dependencies.
type Server struct {
	Router *echo.Echo

	conv   Conversation
	av     Avatar
	media  Media
	stream Stream
	sess   *session.State
	log    zerolog.Logger
}

// New constructs the control API server.
func New(conv Conversation, av Avatar, media Media, stream Stream, sess *session.State, log zerolog.Logger) *Server {
	s := &Server{
		Router: NewRouter(),
		conv:   conv,
		av:     av,
		media:  media,
		stream: stream,
		sess:   sess,
		log:    log,
	}

	s.Router.GET("/healthz", s.handleHealth)
	api := s.Router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
	api.POST("/say", s.handleSay)
	api.POST("/interrupt", s.handleInterrupt)
	api.POST("/reset", s.handleReset)

	return s
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

type statusResponse struct {
	Mode                   string `json:"mode"`
	SessionID              int64  `json:"sessionid"`
	MediaActive            bool   `json:"media_active"`
	AvatarSpeaking         bool   `json:"avatar_speaking"`
	TranscriptionConnected bool   `json:"transcription_connected"`
	Recording              bool   `json:"recording"`
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Mode:                   s.conv.Mode().String(),
		SessionID:              s.sess.ID(),
		MediaActive:            s.media.Active(),
		AvatarSpeaking:         s.av.Speaking(),
		TranscriptionConnected: s.stream.Connected(),
		Recording:              s.stream.Recording(),
	})
}

func (s *Server) handleStart(c echo.Context) error {
	if err := s.media.Start(c.Request().Context(), rtc.Callbacks{}); err != nil {
		s.log.Error().Err(err).Msg("media session start failed")
		status := http.StatusBadGateway
		if errors.Is(err, rtc.ErrOfferTimeout) {
			status = http.StatusGatewayTimeout
		} else if errors.Is(err, rtc.ErrStartPending) {
			status = http.StatusConflict
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]int64{"sessionid": s.sess.ID()})
}

func (s *Server) handleStop(c echo.Context) error {
	if err := s.media.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("media session stop failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type sayRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSay(c echo.Context) error {
	var req sayRequest
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}
	if err := s.av.SendText(c.Request().Context(), req.Text); err != nil {
		if errors.Is(err, avatar.ErrInvalidSession) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "no avatar session, start media first"})
		}
		s.log.Error().Err(err).Msg("send text failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleInterrupt(c echo.Context) error {
	if err := s.av.Interrupt(c.Request().Context()); err != nil {
		if errors.Is(err, avatar.ErrInvalidSession) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "no avatar session"})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReset(c echo.Context) error {
	s.conv.Reset()
	return c.NoContent(http.StatusNoContent)
}
