package transcript

import (
	"fmt"
	"strings"
	"time"
)

const (
	// dedupWindow is how long a transcript stays "recent" for suppression.
	dedupWindow = 10 * time.Second
	// similarityThreshold above which a transcript counts as a near-duplicate.
	similarityThreshold = 0.90
	// maxRecentHashes bounds the remembered hash set; oldest evicted first.
	maxRecentHashes = 50
)

type hashEntry struct {
	key string
	at  time.Time
}

// Deduplicator suppresses repeated and near-duplicate transcripts emitted by
// the streaming server, which re-sends trailing segments across messages.
// It is a synchronous reducer; callers serialize access.
type Deduplicator struct {
	recent   []hashEntry
	lastText string
	lastAt   time.Time

	now func() time.Time
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{now: time.Now}
}

// Accept decides whether text should be forwarded downstream. It returns the
// text and true when the transcript is novel, and false when it is an exact or
// near duplicate of something forwarded within the window.
func (d *Deduplicator) Accept(text string, segments []Segment) (string, bool) {
	if text == "" {
		return "", false
	}
	now := d.now()
	d.prune(now)

	key := transcriptHash(text, segments)
	for _, e := range d.recent {
		if e.key == key {
			return "", false
		}
	}
	if d.lastText != "" && now.Sub(d.lastAt) < dedupWindow {
		if text == d.lastText {
			return "", false
		}
		if similarity(text, d.lastText) > similarityThreshold {
			return "", false
		}
	}

	d.recent = append(d.recent, hashEntry{key: key, at: now})
	if len(d.recent) > maxRecentHashes {
		d.recent = d.recent[len(d.recent)-maxRecentHashes:]
	}
	d.lastText = text
	d.lastAt = now
	return text, true
}

// Reset forgets all history, used when a conversation session restarts.
func (d *Deduplicator) Reset() {
	d.recent = nil
	d.lastText = ""
	d.lastAt = time.Time{}
}

func (d *Deduplicator) prune(now time.Time) {
	keep := d.recent[:0]
	for _, e := range d.recent {
		if now.Sub(e.at) < dedupWindow {
			keep = append(keep, e)
		}
	}
	d.recent = keep
}

// transcriptHash builds a cheap composite key: a text prefix plus segment
// count and boundary segment texts, so the same utterance re-delivered with
// identical segmentation collides even if interior timing fields differ.
func transcriptHash(text string, segments []Segment) string {
	prefix := text
	if len(prefix) > 100 {
		// cut on rune boundaries so multibyte text keys stay valid
		r := []rune(prefix)
		if len(r) > 100 {
			r = r[:100]
		}
		prefix = string(r)
	}
	first, last := "", ""
	if len(segments) > 0 {
		first = segments[0].Text
		last = segments[len(segments)-1].Text
	}
	return fmt.Sprintf("%s|%d|%s|%s", prefix, len(segments), first, last)
}

// similarity returns a ratio in [0,1]. Containment is treated as near
// identity scaled by length; otherwise characters are compared positionally.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}
	matches := 0
	for i := 0; i < len(shorter); i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(longer))
}
