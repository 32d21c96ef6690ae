package vm

import (
	"errors"
	"testing"
)

func TestLocalsSeededFromArgs(t *testing.T) {
	l := NewLocals([]Value{FromFloat64(2), FromFloat64(3), FromFloat64(0.1)})
	for i, want := range []float64{2, 3, 0.1} {
		got, err := l.Get(i)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", i, err)
		}
		if got.Float64() != want {
			t.Errorf("slot %d = %v, want %v", i, got, want)
		}
	}
}

func TestLocalsUnsetSlot(t *testing.T) {
	l := NewLocals(nil)
	if _, err := l.Get(0); !errors.Is(err, ErrUndefinedLocal) {
		t.Errorf("Get on empty activation = %v, want ErrUndefinedLocal", err)
	}

	l = NewLocals([]Value{FromFloat64(1)})
	if _, err := l.Get(5); !errors.Is(err, ErrUndefinedLocal) {
		t.Errorf("Get past end = %v, want ErrUndefinedLocal", err)
	}
}

func TestLocalsSetGrows(t *testing.T) {
	l := NewLocals(nil)
	if err := l.Set(3, FromFloat64(7)); err != nil {
		t.Fatal(err)
	}
	got, err := l.Get(3)
	if err != nil {
		t.Fatalf("Get(3) failed: %v", err)
	}
	if got.Float64() != 7 {
		t.Errorf("slot 3 = %v, want 7", got)
	}
	// Growing leaves the skipped slots unset.
	if _, err := l.Get(1); !errors.Is(err, ErrUndefinedLocal) {
		t.Errorf("Get(1) = %v, want ErrUndefinedLocal", err)
	}
	if err := l.Set(-1, FromFloat64(1)); !errors.Is(err, ErrUndefinedLocal) {
		t.Errorf("Set(-1) = %v, want ErrUndefinedLocal", err)
	}
}
