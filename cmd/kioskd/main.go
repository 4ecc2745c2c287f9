package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/audio"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/avatar"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/config"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/conversation"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/httpserver"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/logging"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/rtc"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/session"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/transcript"
	"github.com/priyanshuailifebot/Whisper-pipeline/internal/wake"
)

// speakingRelay breaks the construction cycle between the avatar client and
// the coordinator: the client needs an observer before the coordinator that
// implements it exists.
type speakingRelay struct {
	mu  sync.Mutex
	obs avatar.SpeakingObserver
}

func (r *speakingRelay) bind(obs avatar.SpeakingObserver) {
	r.mu.Lock()
	r.obs = obs
	r.mu.Unlock()
}

func (r *speakingRelay) get() avatar.SpeakingObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.obs
}

func (r *speakingRelay) SpeakingStarted() {
	if o := r.get(); o != nil {
		o.SpeakingStarted()
	}
}

func (r *speakingRelay) SpeakingStopped() {
	if o := r.get(); o != nil {
		o.SpeakingStopped()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", true).Fatal().Err(err).Msg("configuration error")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	logger.Info().Str("addr", cfg.HTTPAddress).Msg("kioskd starting")

	sess := &session.State{}

	// audio path
	monitor := audio.NewLevelMonitor(logging.Component(logger, "audio"))
	var dump *audio.WavDump
	if cfg.DebugDumpDir != "" {
		dump = audio.NewWavDump(cfg.DebugDumpDir, logging.Component(logger, "audio"))
	}
	capture := audio.NewCapture(logging.Component(logger, "audio"), monitor, dump)

	var sink rtc.PCMSink
	var player *audio.Player
	if cfg.PlaybackEnabled {
		player = audio.NewPlayer(logging.Component(logger, "audio"))
		if err := player.Start(); err != nil {
			logger.Warn().Err(err).Msg("playback unavailable, avatar audio disabled")
			player = nil
		} else {
			sink = player
		}
	}

	// media session
	iceURLs, err := cfg.ICEServerURLs()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid ice server config")
	}
	var iceServers []webrtc.ICEServer
	if len(iceURLs) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: iceURLs}}
	}
	neg := rtc.NewNegotiator(cfg.OfferURL(), iceServers, sess, sink, logging.Component(logger, "rtc"))
	media := rtc.NewController(neg, logging.Component(logger, "rtc"))

	// avatar control channel
	relay := &speakingRelay{}
	av := avatar.NewClient(cfg.AvatarBaseURL, sess, relay, avatar.DefaultMonitorConfig(), logging.Component(logger, "avatar"))

	// transcription: one stream for wake standby, one for the conversation.
	// They share the microphone; the coordinator keeps them exclusive.
	wakeOpts := transcript.DefaultOptions(cfg.WhisperServerURL)
	wakeOpts.Language = "en"
	wakeOpts.Model = cfg.WhisperModel
	wakeOpts.Gain = float32(cfg.AudioGain)
	wakeStream := transcript.NewSession(wakeOpts, capture, logging.Component(logger, "wake-stt"))

	liveOpts := transcript.DefaultOptions(cfg.WhisperServerURL)
	liveOpts.Language = cfg.WhisperLanguage
	liveOpts.Model = cfg.WhisperModel
	liveOpts.UseVAD = cfg.WhisperUseVAD
	liveOpts.EnableTranslation = cfg.WhisperTranslate
	liveOpts.TargetLanguage = cfg.WhisperTargetLanguage
	liveOpts.Gain = float32(cfg.AudioGain)
	liveStream := transcript.NewSession(liveOpts, capture, logging.Component(logger, "stt"))

	detector := wake.NewDetector(cfg.AssistantName, cfg.WakePhrases)

	coord := conversation.New(
		wakeStream, liveStream, av, detector,
		func(text string) {
			// transcripts go to the avatar, which echoes them as speech;
			// downstream reply generation lives in the backend
			if err := av.SendText(context.Background(), text); err != nil {
				logger.Warn().Err(err).Msg("forward transcript failed")
			}
		},
		cfg.SessionTimeout,
		logging.Component(logger, "conversation"),
	)
	relay.bind(coord)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := wakeStream.Connect(rootCtx); err != nil {
		logger.Warn().Err(err).Msg("wake transcription connect failed")
	}
	if err := liveStream.Connect(rootCtx); err != nil {
		logger.Warn().Err(err).Msg("live transcription connect failed")
	}

	// negotiate the avatar stream once at boot; failures are surfaced and
	// left to the operator or the control API, never retried silently
	if err := media.Start(rootCtx, rtc.Callbacks{
		OnFailed: func() { logger.Error().Msg("media session failed") },
	}); err != nil {
		logger.Warn().Err(err).Msg("initial media negotiation failed, use /api/start to retry")
	}

	go func() {
		if err := coord.Run(rootCtx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("coordinator stopped")
		}
	}()

	srv := httpserver.New(coord, av, media, liveStream, sess, logging.Component(logger, "http"))
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress).Msg("control API listening")
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	stop()
	_ = wakeStream.Close()
	_ = liveStream.Close()
	_ = media.Stop()
	if player != nil {
		_ = player.Stop()
	}
	if dump != nil {
		if err := dump.Close(); err != nil {
			logger.Warn().Err(err).Msg("capture dump write failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
		_ = server.Close()
	}
}
