// Package nescore is the NES core's host-facing entry point: load a ROM,
// feed it button input, and drive it one frame at a time. Everything below
// this package (cpu, ppu, bus, cartridge, joypad) is usable on its own, but
// Emulator is the one-stop shape a host harness wants.
package nescore

import (
	"nescore/internal/bus"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/joypad"
	"nescore/internal/ppu"
)

// Palette is the 2C02's fixed 64-color RGB lookup table; Framebuffer
// entries index into it.
var Palette = ppu.Palette

// Button identifies one of the eight controller buttons on a joypad.
type Button = joypad.Button

const (
	ButtonA      = joypad.A
	ButtonB      = joypad.B
	ButtonSelect = joypad.Select
	ButtonStart  = joypad.Start
	ButtonUp     = joypad.Up
	ButtonDown   = joypad.Down
	ButtonLeft   = joypad.Left
	ButtonRight  = joypad.Right
)

// Emulator owns one loaded game's full machine state: CPU, PPU, cartridge,
// and both controller ports.
type Emulator struct {
	bus  *bus.Bus
	cpu  *cpu.CPU
	ppu  *ppu.PPU
	cart *cartridge.Cartridge
	pad1 *joypad.Joypad
	pad2 *joypad.Joypad
}

// New parses romBytes as an iNES image and builds a powered-on Emulator.
// It fails only here; every later call is infallible, per the cartridge's
// own load-once contract.
func New(romBytes []byte) (*Emulator, error) {
	cart, err := cartridge.New(romBytes)
	if err != nil {
		return nil, err
	}

	p := ppu.New()
	pad1 := joypad.New()
	pad2 := joypad.New()
	b := bus.New(p, cart, pad1, pad2)
	c := cpu.New(b)
	b.AttachCPU(c)
	b.Reset()

	return &Emulator{bus: b, cpu: c, ppu: p, cart: cart, pad1: pad1, pad2: pad2}, nil
}

// Press marks a button held on the given controller port (1 or 2).
func (e *Emulator) Press(port int, b Button) {
	e.padForPort(port).Press(b)
}

// Release marks a button released on the given controller port (1 or 2).
func (e *Emulator) Release(port int, b Button) {
	e.padForPort(port).Release(b)
}

func (e *Emulator) padForPort(port int) *joypad.Joypad {
	if port == 2 {
		return e.pad2
	}
	return e.pad1
}

// RunUntilFrame steps the machine until the PPU completes a frame, i.e.
// until its internal frame counter advances past its value at the start
// of this call.
func (e *Emulator) RunUntilFrame() {
	start := e.ppu.FrameCount()
	for e.ppu.FrameCount() == start {
		e.bus.Step()
	}
}

// Framebuffer returns the most recently completed frame as 256x240 palette
// indices (0-63); index through Palette for RGB.
func (e *Emulator) Framebuffer() *[256 * 240]uint8 {
	return e.ppu.Framebuffer()
}

// Reset performs a soft reset: clears work RAM and returns the CPU and PPU
// to their post-power-up state without reloading the cartridge.
func (e *Emulator) Reset() {
	e.bus.Reset()
}
