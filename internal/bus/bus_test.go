package bus

import (
	"testing"

	"nescore/internal/cartridge"
	"nescore/internal/joypad"
	"nescore/internal/ppu"
)

// fakeCPU is a minimal CPU stand-in so bus tests don't depend on the full
// 6502 interpreter; it just records what the bus asks it to do.
type fakeCPU struct {
	cycles       uint64
	steps        int
	lastNMI      bool
	stepReturns  uint64
}

func (c *fakeCPU) Reset()                   {}
func (c *fakeCPU) Cycles() uint64           { return c.cycles }
func (c *fakeCPU) TickCycles(n uint64)      { c.cycles += n }
func (c *fakeCPU) Step(nmiPending bool) uint64 {
	c.steps++
	c.lastNMI = nmiPending
	ret := c.stepReturns
	if ret == 0 {
		ret = 2
	}
	c.cycles += ret
	return ret
}

func buildNROM(t *testing.T) *cartridge.Cartridge {
	t.Helper()
	header := make([]byte, 16)
	copy(header[0:4], []byte("NES\x1A"))
	header[4] = 1 // 1 PRG bank
	header[5] = 1 // 1 CHR bank
	rom := append(header, make([]byte, 16*1024+8*1024)...)
	cart, err := cartridge.New(rom)
	if err != nil {
		t.Fatalf("buildNROM: %v", err)
	}
	return cart
}

func newTestBus(t *testing.T) (*Bus, *fakeCPU) {
	t.Helper()
	p := ppu.New()
	cart := buildNROM(t)
	b := New(p, cart, joypad.New(), joypad.New())
	c := &fakeCPU{}
	b.AttachCPU(c)
	return b, c
}

func TestRAMIsMirroredEvery0x0800(t *testing.T) {
	b, _ := newTestBus(t)
	b.Write(0x0001, 0x42)
	if got := b.Read(0x0801); got != 0x42 {
		t.Errorf("0x0801 = %#x, want 0x42 (mirrors 0x0001)", got)
	}
	if got := b.Read(0x1801); got != 0x42 {
		t.Errorf("0x1801 = %#x, want 0x42 (mirrors 0x0001)", got)
	}
}

func TestPPURegistersMirrorEvery8Bytes(t *testing.T) {
	b, _ := newTestBus(t)
	// $2006/$2007 via their mirrors at $200E/$200F must reach the same
	// PPUADDR/PPUDATA registers as the base addresses: write a palette
	// byte through the mirror, then read it back through the base address.
	b.Write(0x200E, 0x3F)
	b.Write(0x200E, 0x00)
	b.Write(0x200F, 0x11)

	b.Write(0x2006, 0x3F)
	b.Write(0x2006, 0x00)
	if got := b.Read(0x2007); got != 0x11 {
		t.Errorf("palette byte written via mirrored registers = %#x, want 0x11", got)
	}
}

func TestJoypadPortsRouteToSeparateJoypads(t *testing.T) {
	b, _ := newTestBus(t)
	b.pad1.Press(joypad.A)
	b.Write(0x4016, 1)
	b.Write(0x4016, 0)
	if got := b.Read(0x4016); got != 1 {
		t.Errorf("pad1 A read = %d, want 1", got)
	}
	if got := b.Read(0x4017); got != 0 {
		t.Errorf("pad2 (unpressed) read = %d, want 0", got)
	}
}

func TestOAMDMACopies256BytesAndStallsCPU(t *testing.T) {
	b, c := newTestBus(t)
	for i := 0; i < 256; i++ {
		b.Write(uint16(0x0200+i), byte(i))
	}
	c.cycles = 10 // even, expect 513-cycle stall

	b.Write(0x4014, 0x02)
	if b.dmaSuspendCycles != 513 {
		t.Errorf("dmaSuspendCycles = %d, want 513 for even start cycle", b.dmaSuspendCycles)
	}

	b.Write(0x2003, 0x05) // OAMADDR = 5
	if got := b.Read(0x2004); got != 5 {
		t.Errorf("OAM[5] after DMA from page 2 = %#x, want 5", got)
	}
}

func TestOAMDMAOddCycleCostsExtraCycle(t *testing.T) {
	b, c := newTestBus(t)
	c.cycles = 11 // odd, expect 514-cycle stall
	b.Write(0x4014, 0x02)
	if b.dmaSuspendCycles != 514 {
		t.Errorf("dmaSuspendCycles = %d, want 514 for odd start cycle", b.dmaSuspendCycles)
	}
}

func TestStepStallsCPUDuringDMAAndStillTicksPPU(t *testing.T) {
	b, c := newTestBus(t)
	c.cycles = 10
	b.Write(0x4014, 0x00)
	stalledSteps := c.steps

	cycles := b.Step()
	if cycles != 1 {
		t.Errorf("Step during DMA returned %d cycles, want 1", cycles)
	}
	if c.steps != stalledSteps {
		t.Error("CPU.Step should not be called while DMA is suspending the bus")
	}
}

func TestCartridgeWindowRoutesAboveDollar8000(t *testing.T) {
	b, _ := newTestBus(t)
	if got := b.Read(0x8000); got != 0 {
		t.Errorf("PRG read = %#x, want 0 (zero-filled test ROM)", got)
	}
}
