package chime

import (
	"bytes"
	"errors"
	"testing"
)

func TestBellWritesBEL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	b := &Bell{W: &buf}
	if err := b.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if buf.String() != "\a" {
		t.Fatalf("expected BEL, got %q", buf.String())
	}
}

func TestBellWithoutWriter(t *testing.T) {
	t.Parallel()

	if err := (&Bell{}).Play(); !errors.Is(err, ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if New(true).Name() != "bell" || New(false).Name() != "silent" {
		t.Fatal("unexpected player selection")
	}
	if err := New(false).Play(); err != nil {
		t.Fatalf("silent player failed: %v", err)
	}
}
