// Package chime plays the check-in notification sound.
package chime

import (
	"errors"
	"io"
	"os"
	"sync"
)

// Player plays one notification sound
type Player interface {
	Name() string
	Play() error
}

// ErrNoOutput is returned by a Bell without a writer
var ErrNoOutput = errors.New("chime: no output")

// Bell writes the terminal bell character to W
type Bell struct {
	mu sync.Mutex
	W  io.Writer
}

// NewBell creates a bell on stdout
func NewBell() *Bell {
	return &Bell{W: os.Stdout}
}

func (b *Bell) Name() string { return "bell" }

func (b *Bell) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.W == nil {
		return ErrNoOutput
	}
	_, err := io.WriteString(b.W, "\a")
	return err
}

// Silent never makes a sound
type Silent struct{}

func (Silent) Name() string { return "silent" }
func (Silent) Play() error  { return nil }

// New returns a Bell when enabled, Silent otherwise
func New(enabled bool) Player {
	if enabled {
		return NewBell()
	}
	return Silent{}
}
