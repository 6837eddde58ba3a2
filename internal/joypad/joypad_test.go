package joypad

import "testing"

func TestNewHasNoButtonsPressed(t *testing.T) {
	j := New()
	j.WriteStrobe(1)
	j.WriteStrobe(0)
	if got := j.Read(); got != 0 {
		t.Errorf("Read() = %d, want 0 with no buttons pressed", got)
	}
}

func TestReadOrderMatchesButtonLayout(t *testing.T) {
	j := New()
	j.Press(A)
	j.Press(Start)
	j.Press(Right)

	j.WriteStrobe(1)
	j.WriteStrobe(0)

	want := []uint8{1, 0, 0, 1, 0, 0, 0, 1} // A,B,Select,Start,Up,Down,Left,Right
	for i, w := range want {
		if got := j.Read(); got != w {
			t.Errorf("bit %d: Read() = %d, want %d", i, got, w)
		}
	}
}

func TestReadsPastEightReturnOne(t *testing.T) {
	j := New()
	j.WriteStrobe(1)
	j.WriteStrobe(0)
	for i := 0; i < 8; i++ {
		j.Read()
	}
	if got := j.Read(); got != 1 {
		t.Errorf("9th read = %d, want 1 (real hardware behavior)", got)
	}
}

func TestStrobeHighAlwaysReturnsButtonA(t *testing.T) {
	j := New()
	j.Press(A)
	j.WriteStrobe(1)
	for i := 0; i < 3; i++ {
		if got := j.Read(); got != 1 {
			t.Errorf("read %d while strobed = %d, want 1", i, got)
		}
	}
	j.Release(A)
	if got := j.Read(); got != 0 {
		t.Errorf("strobed read after release = %d, want 0", got)
	}
}

func TestPressWhileStrobedReloadsImmediately(t *testing.T) {
	j := New()
	j.WriteStrobe(1)
	j.Press(B)
	// Still strobed: reads always reflect button A regardless of B.
	if got := j.Read(); got != 0 {
		t.Errorf("Read() = %d, want 0 (A not pressed)", got)
	}
	j.WriteStrobe(0)
	j.Read() // discard A bit
	if got := j.Read(); got != 1 {
		t.Errorf("B bit = %d, want 1", got)
	}
}
