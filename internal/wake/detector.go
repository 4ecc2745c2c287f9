// Package wake detects the assistant wake phrase in recognized speech.
package wake

import (
	"strings"
	"sync"
	"time"
)

const (
	// cooldown suppresses repeated detections from overlapping recognizer
	// output.
	cooldown = 3 * time.Second
	// window is how long recognized text stays in the trailing buffer, so
	// "hey ... mira" split across results still triggers.
	window = 5 * time.Second
)

var defaultGreetings = []string{"hi", "hey", "hello"}

type entry struct {
	text string
	at   time.Time
}

// Detector matches the wake phrase against a trailing buffer of recognized
// text. Detection fires on an exact phrase, or on the assistant name
// co-occurring with a greeting word inside the buffer window.
type Detector struct {
	name      string
	phrases   []string
	greetings []string

	mu       sync.Mutex
	buffer   []entry
	lastFire time.Time

	now func() time.Time
}

// NewDetector builds a detector for the given assistant name. phrases may be
// nil, in which case "<greeting> <name>" variants are used.
func NewDetector(name string, phrases []string) *Detector {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(phrases) == 0 {
		for _, g := range defaultGreetings {
			phrases = append(phrases, g+" "+name)
		}
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return &Detector{
		name:      name,
		phrases:   lowered,
		greetings: defaultGreetings,
		now:       time.Now,
	}
}

// Feed adds recognized text and reports whether the wake phrase fired.
func (d *Detector) Feed(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.buffer = append(d.buffer, entry{text: t, at: now})
	d.prune(now)

	if now.Sub(d.lastFire) < cooldown {
		return false
	}

	for _, p := range d.phrases {
		if strings.Contains(t, p) {
			d.fire(now)
			return true
		}
	}

	// permissive fallback: name and a greeting anywhere in the window
	joined := d.joined()
	if strings.Contains(joined, d.name) {
		for _, g := range d.greetings {
			if containsWord(joined, g) {
				d.fire(now)
				return true
			}
		}
	}
	return false
}

// Reset clears the buffer, used when capture restarts.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.buffer = nil
	d.mu.Unlock()
}

func (d *Detector) fire(now time.Time) {
	d.lastFire = now
	d.buffer = nil
}

func (d *Detector) prune(now time.Time) {
	keep := d.buffer[:0]
	for _, e := range d.buffer {
		if now.Sub(e.at) < window {
			keep = append(keep, e)
		}
	}
	d.buffer = keep
}

func (d *Detector) joined() string {
	parts := make([]string, len(d.buffer))
	for i, e := range d.buffer {
		parts[i] = e.text
	}
	return strings.Join(parts, " ")
}

func containsWord(text, word string) bool {
	for _, f := range strings.Fields(text) {
		if strings.Trim(f, ".,!?") == word {
			return true
		}
	}
	return false
}
