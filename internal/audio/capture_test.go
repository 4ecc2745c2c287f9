package audio

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestCapture_RejectsSecondOwner(t *testing.T) {
	c := NewCapture(zerolog.Nop(), nil, nil)
	c.started = true
	if err := c.Start(func([]float32) {}); !errors.Is(err, ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}
