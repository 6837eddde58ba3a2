// Package bus wires the CPU, PPU, cartridge, and joypads together behind
// the 6502's address space: RAM mirroring, PPU register porting, OAM DMA,
// and controller ports.
package bus

import (
	"log"

	"nescore/internal/cartridge"
	"nescore/internal/joypad"
	"nescore/internal/ppu"
)

// CPU is the subset of *cpu.CPU the bus drives; kept as an interface so the
// bus package doesn't import cpu and create a dependency cycle with any
// future CPU-side bus helpers.
type CPU interface {
	Reset()
	Step(nmiPending bool) uint64
	TickCycles(n uint64)
	Cycles() uint64
}

// Bus is the NES's central memory router. It owns work RAM and dispatches
// every CPU access to the PPU, cartridge, or controllers as the $0000-$FFFF
// map requires.
type Bus struct {
	cpu   CPU
	ppu   *ppu.PPU
	cart  *cartridge.Cartridge
	pad1  *joypad.Joypad
	pad2  *joypad.Joypad

	ram [0x0800]uint8

	dmaSuspendCycles uint64
	openBus          uint8

	logger *log.Logger
}

// New creates a Bus. Call AttachCPU before Reset/Step.
func New(p *ppu.PPU, cart *cartridge.Cartridge, pad1, pad2 *joypad.Joypad) *Bus {
	b := &Bus{ppu: p, cart: cart, pad1: pad1, pad2: pad2}
	p.AttachCartridge(cart, cart.Mirror())
	return b
}

// AttachCPU wires the driving CPU. Done after New because the CPU's own
// constructor needs the bus as its MemoryInterface, so construction order
// is: bus := New(...); c := cpu.New(bus); bus.AttachCPU(c).
func (b *Bus) AttachCPU(c CPU) {
	b.cpu = c
}

// SetLogger installs an optional diagnostic sink; nil disables logging.
func (b *Bus) SetLogger(l *log.Logger) {
	b.logger = l
}

// Reset powers on the whole machine: clears work RAM, resets PPU and CPU.
func (b *Bus) Reset() {
	for i := range b.ram {
		b.ram[i] = 0
	}
	b.dmaSuspendCycles = 0
	b.ppu.Reset()
	b.cpu.Reset()
}

// Step advances the machine by one CPU instruction (or, while OAM DMA is
// suspending the CPU, by one stalled cycle), then ticks the PPU three
// times per CPU cycle consumed, matching the NES's fixed clock ratio.
// Returns the number of CPU cycles consumed this call.
func (b *Bus) Step() uint64 {
	var cpuCycles uint64

	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		b.cpu.TickCycles(1)
	} else {
		nmi := b.ppu.TakeNMI()
		cpuCycles = b.cpu.Step(nmi)
	}

	for i := uint64(0); i < cpuCycles*3; i++ {
		b.ppu.Tick()
	}
	return cpuCycles
}

// Read implements cpu.MemoryInterface for the full CPU address space.
func (b *Bus) Read(addr uint16) uint8 {
	var value uint8
	switch {
	case addr < 0x2000:
		value = b.ram[addr&0x07FF]
	case addr < 0x4000:
		value = b.ppu.ReadRegister(0x2000 + (addr & 0x0007))
	case addr == 0x4016:
		value = b.pad1.Read()
	case addr == 0x4017:
		value = b.pad2.Read()
	case addr < 0x8000:
		// $4020-$5FFF cartridge expansion and $6000-$7FFF PRG-RAM are both
		// unimplemented: neither mapper this core supports (NROM, UxROM)
		// carries battery-backed SRAM, so this window stays open bus.
		value = b.openBus
	default:
		value = b.cart.ReadPRG(addr)
	}
	b.openBus = value
	return value
}

// Write implements cpu.MemoryInterface for the full CPU address space.
func (b *Bus) Write(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		b.ram[addr&0x07FF] = val
	case addr < 0x4000:
		b.ppu.WriteRegister(0x2000+(addr&0x0007), val)
	case addr == 0x4014:
		b.oamDMA(val)
	case addr == 0x4016:
		b.pad1.WriteStrobe(val)
		b.pad2.WriteStrobe(val)
	case addr == 0x4017:
		// APU frame counter: not implemented by this core (spec non-goal).
	case addr < 0x4020:
		// Other APU registers: not implemented by this core.
	case addr < 0x8000:
		// No-op: see the matching comment in Read.
	default:
		b.cart.WritePRG(addr, val)
	}
}

// oamDMA copies 256 bytes from page (val<<8) into OAM, immediately, and
// bills the CPU 513 cycles (514 if the CPU's cycle counter is odd when the
// DMA begins) by suspending subsequent Step calls. Real hardware staggers
// the copy one byte per two cycles; collapsing it to an immediate copy
// plus a matching stall is externally indistinguishable since nothing
// else can observe OAM mid-transfer.
func (b *Bus) oamDMA(page uint8) {
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		b.ppu.WriteOAM(uint8(i), b.Read(base+uint16(i)))
	}

	cycles := uint64(513)
	if b.cpu.Cycles()%2 == 1 {
		cycles = 514
	}
	b.dmaSuspendCycles = cycles
	if b.logger != nil {
		b.logger.Printf("bus: OAM DMA from page %#02x, %d cycles", page, cycles)
	}
}
