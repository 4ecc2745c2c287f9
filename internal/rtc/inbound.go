package rtc

import (
	"strings"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3"
)

// handleTrack routes inbound media. Avatar audio is Opus; it is decoded to
// 48kHz mono PCM and handed to the playback sink. Video frames are drained
// and dropped since rendering happens outside this process.
func (n *Negotiator) handleTrack(remote *webrtc.TrackRemote) {
	codec := remote.Codec()
	n.log.Info().Str("kind", remote.Kind().String()).Str("codec", codec.MimeType).Msg("remote track received")

	if remote.Kind() == webrtc.RTPCodecTypeVideo {
		go drainTrack(remote)
		return
	}
	if !strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus) {
		n.log.Warn().Str("codec", codec.MimeType).Msg("unsupported audio codec, ignoring track")
		go drainTrack(remote)
		return
	}
	if n.sink == nil {
		go drainTrack(remote)
		return
	}

	dec, err := opus.NewDecoder(48000, 1)
	if err != nil {
		n.log.Error().Err(err).Msg("opus decoder init failed")
		go drainTrack(remote)
		return
	}

	go func() {
		// 120ms at 48kHz is the largest legal opus frame
		pcm := make([]int16, 5760)
		for {
			pkt, _, err := remote.ReadRTP()
			if err != nil {
				n.log.Debug().Err(err).Msg("audio track ended")
				return
			}
			if len(pkt.Payload) == 0 {
				continue
			}
			nSamples, err := dec.Decode(pkt.Payload, pcm)
			if err != nil {
				n.log.Warn().Err(err).Msg("opus decode error")
				continue
			}
			out := make([]int16, nSamples)
			copy(out, pcm[:nSamples])
			n.sink.PlayPCM(out)
		}
	}()
}

// drainTrack keeps reading so the receiver's buffers do not back up.
func drainTrack(remote *webrtc.TrackRemote) {
	for {
		if _, _, err := remote.ReadRTP(); err != nil {
			return
		}
	}
}
