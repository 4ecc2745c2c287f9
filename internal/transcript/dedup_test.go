package transcript

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestDeduplicator(start time.Time) (*Deduplicator, *time.Time) {
	now := start
	d := NewDeduplicator()
	d.now = func() time.Time { return now }
	return d, &now
}

func TestDedup_AcceptsFirstOccurrence(t *testing.T) {
	d, _ := newTestDeduplicator(time.Now())
	got, ok := d.Accept("hello there", nil)
	if !ok || got != "hello there" {
		t.Fatalf("expected first transcript accepted, got %q ok=%v", got, ok)
	}
}

func TestDedup_SuppressesIdenticalWithinWindow(t *testing.T) {
	d, now := newTestDeduplicator(time.Now())
	if _, ok := d.Accept("hello there", nil); !ok {
		t.Fatalf("first accept failed")
	}
	*now = now.Add(2 * time.Second)
	if _, ok := d.Accept("hello there", nil); ok {
		t.Fatalf("identical transcript within window should be suppressed")
	}
}

func TestDedup_SuppressesSameHashDifferentSegmentsTiming(t *testing.T) {
	d, now := newTestDeduplicator(time.Now())
	segs := []Segment{{Text: "hello", Start: "0.0", End: "1.0"}, {Text: "there", Start: "1.0", End: "2.0"}}
	if _, ok := d.Accept("hello there", segs); !ok {
		t.Fatalf("first accept failed")
	}
	*now = now.Add(time.Second)
	// same text and boundary segments, only interior timing changed
	segs2 := []Segment{{Text: "hello", Start: "0.1", End: "1.1"}, {Text: "there", Start: "1.1", End: "2.1"}}
	if _, ok := d.Accept("hello there", segs2); ok {
		t.Fatalf("re-delivered transcript should collide on hash and be suppressed")
	}
}

func TestDedup_SuppressesNearDuplicate(t *testing.T) {
	d, now := newTestDeduplicator(time.Now())
	if _, ok := d.Accept("what are the library opening hours", nil); !ok {
		t.Fatalf("first accept failed")
	}
	*now = now.Add(time.Second)
	// trailing punctuation variant, containment ratio above threshold
	if _, ok := d.Accept("what are the library opening hours.", nil); ok {
		t.Fatalf("near-duplicate should be suppressed")
	}
}

func TestDedup_AcceptsDistinctText(t *testing.T) {
	d, now := newTestDeduplicator(time.Now())
	if _, ok := d.Accept("hello there", nil); !ok {
		t.Fatalf("first accept failed")
	}
	*now = now.Add(time.Second)
	if _, ok := d.Accept("where is the cafeteria", nil); !ok {
		t.Fatalf("distinct transcript should be accepted")
	}
}

func TestDedup_ReacceptsAfterWindow(t *testing.T) {
	d, now := newTestDeduplicator(time.Now())
	if _, ok := d.Accept("hello there", nil); !ok {
		t.Fatalf("first accept failed")
	}
	*now = now.Add(11 * time.Second)
	if _, ok := d.Accept("hello there", nil); !ok {
		t.Fatalf("transcript should be accepted again after the window expires")
	}
}

func TestDedup_HashSetBounded(t *testing.T) {
	d, _ := newTestDeduplicator(time.Now())
	for i := 0; i < maxRecentHashes+25; i++ {
		// alternate shapes so consecutive texts never look similar
		text := fmt.Sprintf("alpha beta gamma delta epsilon %d", i)
		if i%2 == 1 {
			text = fmt.Sprintf("%d zulu yankee xray", i)
		}
		if _, ok := d.Accept(text, nil); !ok {
			t.Fatalf("transcript %d unexpectedly suppressed", i)
		}
	}
	if len(d.recent) > maxRecentHashes {
		t.Fatalf("recent hash set grew to %d, cap is %d", len(d.recent), maxRecentHashes)
	}
}

func TestTranscriptHash_MultibytePrefixStaysValid(t *testing.T) {
	// 150 bytes of Devanagari; a byte-wise cut at 100 would land mid-rune
	text := strings.Repeat("न", 50)
	key := transcriptHash(text, nil)
	if !utf8.ValidString(key) {
		t.Fatalf("hash key contains a split rune: %q", key)
	}
}

func TestDedup_EmptyTextRejected(t *testing.T) {
	d, _ := newTestDeduplicator(time.Now())
	if _, ok := d.Accept("", nil); ok {
		t.Fatalf("empty transcript should never be forwarded")
	}
}

func TestSimilarity_Containment(t *testing.T) {
	if s := similarity("hello world", "hello world!"); s <= 0.9 {
		t.Fatalf("containment variant should score above threshold, got %f", s)
	}
	if s := similarity("abc", "completely different text"); s > 0.5 {
		t.Fatalf("unrelated strings scored too high: %f", s)
	}
}
