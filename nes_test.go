package nescore

import "testing"

// buildNROM assembles a minimal one-bank NROM image with a reset vector
// pointing at $8000 and an infinite loop there, so RunUntilFrame has
// something harmless to execute.
func buildNROM(t *testing.T) []byte {
	t.Helper()
	header := []byte{'N', 'E', 'S', 0x1A, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	prg := make([]byte, 16*1024)
	prg[0] = 0x4C // JMP $8000
	prg[1] = 0x00
	prg[2] = 0x80
	prg[0x3FFC] = 0x00 // reset vector low
	prg[0x3FFD] = 0x80 // reset vector high
	chr := make([]byte, 8*1024)

	rom := append(header, prg...)
	rom = append(rom, chr...)
	return rom
}

func TestNewRejectsShortBuffer(t *testing.T) {
	if _, err := New([]byte{1, 2, 3}); err == nil {
		t.Error("New should reject a buffer shorter than the iNES header")
	}
}

func TestRunUntilFrameAdvancesExactlyOneFrame(t *testing.T) {
	e, err := New(buildNROM(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before := e.ppu.FrameCount()
	e.RunUntilFrame()
	after := e.ppu.FrameCount()
	if after != before+1 {
		t.Errorf("frame count advanced by %d, want 1", after-before)
	}
}

func TestFramebufferIsScreenSized(t *testing.T) {
	e, err := New(buildNROM(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.RunUntilFrame()
	fb := e.Framebuffer()
	if len(fb) != 256*240 {
		t.Errorf("framebuffer length = %d, want %d", len(fb), 256*240)
	}
}

func TestPressAndReleaseRouteToDistinctPorts(t *testing.T) {
	e, err := New(buildNROM(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Press(1, ButtonA)
	e.Press(2, ButtonB)

	e.bus.Write(0x4016, 1)
	e.bus.Write(0x4016, 0)

	if got := e.bus.Read(0x4016); got&0x01 != 1 {
		t.Errorf("port 1 A read = %d, want 1", got&0x01)
	}
	if got := e.bus.Read(0x4017); got&0x01 != 0 {
		t.Errorf("port 2 A read = %d, want 0 (A pressed only on port 1)", got&0x01)
	}
	if got := e.bus.Read(0x4017); got&0x01 != 1 {
		t.Errorf("port 2 B read = %d, want 1", got&0x01)
	}
}

func TestResetReloadsResetVector(t *testing.T) {
	e, err := New(buildNROM(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.RunUntilFrame()
	e.cpu.PC = 0x1234
	before := e.cpu.Cycles()
	e.Reset()
	if e.cpu.PC != 0x8000 {
		t.Errorf("PC after reset = %#x, want 0x8000 (from the reset vector)", e.cpu.PC)
	}
	if got := e.cpu.Cycles() - before; got != 8 {
		t.Errorf("reset billed %d cycles, want the 8-cycle reset sequence", got)
	}
}
