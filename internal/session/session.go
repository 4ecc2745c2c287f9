// Package session holds the avatar session identity negotiated over WebRTC
// and shared with the control channel.
package session

import "sync/atomic"

// State is the single source of truth for the backend session id.
// Id 0 means no valid session has been negotiated yet.
type State struct {
	id atomic.Int64
}

// Set records the session id returned by the offer exchange.
func (s *State) Set(id int64) { s.id.Store(id) }

// ID returns the current session id, 0 if none.
func (s *State) ID() int64 { return s.id.Load() }

// Valid reports whether a usable session id is present.
func (s *State) Valid() bool { return s.id.Load() != 0 }

// Clear resets the id when the peer connection ends.
func (s *State) Clear() { s.id.Store(0) }
