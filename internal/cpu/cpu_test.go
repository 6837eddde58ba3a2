package cpu

import "testing"

// testMemory is a flat 64KB array satisfying MemoryInterface, enough to
// exercise the CPU in isolation from the bus.
type testMemory struct {
	ram [0x10000]uint8
}

func (m *testMemory) Read(addr uint16) uint8     { return m.ram[addr] }
func (m *testMemory) Write(addr uint16, val uint8) { m.ram[addr] = val }

func newTestCPU() (*CPU, *testMemory) {
	mem := &testMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80 // PC starts at $8000
	c := New(mem)
	c.Reset()
	return c, mem
}

func TestResetLoadsVectorAndDefaultFlags(t *testing.T) {
	c, _ := newTestCPU()
	if c.PC != 0x8000 {
		t.Errorf("PC = %#x, want 0x8000", c.PC)
	}
	if c.SP != 0xFD {
		t.Errorf("SP = %#x, want 0xFD", c.SP)
	}
	if !c.I {
		t.Error("I flag should be set after reset")
	}
	if got := c.StatusByte(); got != 0x24 {
		t.Errorf("status byte after reset = %#x, want 0x24 (I and unused set, Break clear)", got)
	}
}

func TestLDAImmediateSetsZeroAndNegativeFlags(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[0x8000] = 0xA9 // LDA #imm
	mem.ram[0x8001] = 0x00
	c.Step(false)
	if !c.Z {
		t.Error("Z should be set after loading 0")
	}

	c.PC = 0x8000
	mem.ram[0x8001] = 0x80
	c.Step(false)
	if !c.N {
		t.Error("N should be set after loading 0x80")
	}
}

func TestADCSetsCarryAndOverflow(t *testing.T) {
	c, mem := newTestCPU()
	c.A = 0x7F // +127
	mem.ram[0x8000] = 0x69
	mem.ram[0x8001] = 0x01 // +1 -> signed overflow into negative
	c.Step(false)
	if c.A != 0x80 {
		t.Errorf("A = %#x, want 0x80", c.A)
	}
	if !c.V {
		t.Error("V should be set on signed overflow")
	}
	if c.C {
		t.Error("C should not be set, no unsigned carry out")
	}
}

func TestSBCBorrowsWithClearedCarry(t *testing.T) {
	c, mem := newTestCPU()
	c.A = 0x00
	c.C = false // borrow in
	mem.ram[0x8000] = 0xE9
	mem.ram[0x8001] = 0x00
	c.Step(false)
	if c.A != 0xFF {
		t.Errorf("A = %#x, want 0xFF", c.A)
	}
	if c.C {
		t.Error("C should be clear: result borrowed")
	}
}

func TestBranchTakenAddsCycleAndPageCrossAddsAnother(t *testing.T) {
	c, mem := newTestCPU()
	c.Z = true
	mem.ram[0x8000] = 0xF0 // BEQ
	mem.ram[0x8001] = 0x7D // forward 125: 0x8002+0x7D = 0x807F, no cross
	cycles := c.Step(false)
	if cycles != 3 {
		t.Errorf("cycles = %d, want 3 (base 2 + taken 1)", cycles)
	}

	c2, mem2 := newTestCPU()
	c2.Z = true
	mem2.ram[0x8000] = 0xF0
	mem2.ram[0x8001] = 0x80 // back 128: 0x8002 - 0x80 = 0x7F82, crosses page
	cycles2 := c2.Step(false)
	if cycles2 != 4 {
		t.Errorf("cycles = %d, want 4 (base 2 + taken 1 + page cross 1)", cycles2)
	}
}

func TestJMPIndirectPageBoundaryBug(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[0x8000] = 0x6C // JMP (ind)
	mem.ram[0x8001] = 0xFF
	mem.ram[0x8002] = 0x30 // pointer = $30FF
	mem.ram[0x30FF] = 0x34
	mem.ram[0x3000] = 0x12 // high byte wraps to $3000, not $3100
	mem.ram[0x3100] = 0xFF // would be wrong answer if bug not reproduced
	c.Step(false)
	if c.PC != 0x1234 {
		t.Errorf("PC = %#x, want 0x1234 (page-wrap bug)", c.PC)
	}
}

func TestBRKPushesPCPlusTwoAndSetsBreakBit(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[irqVector] = 0x00
	mem.ram[irqVector+1] = 0x90
	mem.ram[0x8000] = 0x00 // BRK
	c.Step(false)

	if c.PC != 0x9000 {
		t.Errorf("PC = %#x, want 0x9000 (loaded from IRQ/BRK vector)", c.PC)
	}
	pushedStatus := mem.ram[stackBase+uint16(c.SP)+1]
	if pushedStatus&bFlagMask == 0 {
		t.Error("pushed status should have Break flag set")
	}
	returnLow := mem.ram[stackBase+uint16(c.SP)+2]
	returnHigh := mem.ram[stackBase+uint16(c.SP)+3]
	returnAddr := uint16(returnHigh)<<8 | uint16(returnLow)
	if returnAddr != 0x8002 {
		t.Errorf("pushed return address = %#x, want 0x8002", returnAddr)
	}
}

func TestBRKIgnoresInterruptDisableFlag(t *testing.T) {
	c, mem := newTestCPU()
	c.I = true
	mem.ram[irqVector] = 0x00
	mem.ram[irqVector+1] = 0x90
	mem.ram[0x8000] = 0x00
	c.Step(false)
	if c.PC != 0x9000 {
		t.Error("BRK must execute even with I set: it is a software interrupt, not IRQ")
	}
}

func TestNMIStepServicesBeforeFetchingNextOpcode(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[nmiVector] = 0x00
	mem.ram[nmiVector+1] = 0xA0
	mem.ram[0x8000] = 0xEA // NOP, should not execute this step

	cycles := c.Step(true)
	if cycles != 7 {
		t.Errorf("NMI service cost = %d, want 7", cycles)
	}
	if c.PC != 0xA000 {
		t.Errorf("PC = %#x, want 0xA000 (NMI vector)", c.PC)
	}
	if !c.I {
		t.Error("I should be set after NMI entry")
	}
}

func TestCompareSetsCarryWhenRegisterGreaterOrEqual(t *testing.T) {
	c, mem := newTestCPU()
	c.A = 0x50
	mem.ram[0x8000] = 0xC9 // CMP #imm
	mem.ram[0x8001] = 0x50
	c.Step(false)
	if !c.C || !c.Z {
		t.Error("CMP equal operands should set both C and Z")
	}
}

func TestPLPAlwaysClearsBreakRegardlessOfPoppedBit(t *testing.T) {
	c, mem := newTestCPU()
	c.push(0xFF) // every bit set, including Break
	mem.ram[0x8000] = 0x28 // PLP
	c.Step(false)
	if c.B {
		t.Error("PLP should always clear Break, even when the popped byte has it set")
	}
}

func TestAXAStoresAAndXAndHighBytePlusOne(t *testing.T) {
	c, mem := newTestCPU()
	c.A = 0xFF
	c.X = 0xFF
	c.Y = 0x10
	mem.ram[0x8000] = 0x9F // AXA abs,Y
	mem.ram[0x8001] = 0x00
	mem.ram[0x8002] = 0x42
	c.Step(false)
	if got := mem.ram[0x4210]; got != 0x43 {
		t.Errorf("AXA stored %#x, want 0x43 (A&X&0x42)+1", got)
	}
}

func TestSAYStoresYAndHighBytePlusOne(t *testing.T) {
	c, mem := newTestCPU()
	c.X = 0x10
	c.Y = 0xFF
	mem.ram[0x8000] = 0x9C // SAY abs,X
	mem.ram[0x8001] = 0x00
	mem.ram[0x8002] = 0x42
	c.Step(false)
	if got := mem.ram[0x4210]; got != 0x43 {
		t.Errorf("SAY stored %#x, want 0x43 (Y&(0x42+1))", got)
	}
}

func TestStackPushPopRoundTrips(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[0x8000] = 0xA9 // LDA #$42
	mem.ram[0x8001] = 0x42
	mem.ram[0x8002] = 0x48 // PHA
	mem.ram[0x8003] = 0xA9 // LDA #$00
	mem.ram[0x8004] = 0x00
	mem.ram[0x8005] = 0x68 // PLA
	for i := 0; i < 4; i++ {
		c.Step(false)
	}
	if c.A != 0x42 {
		t.Errorf("A after PLA = %#x, want 0x42", c.A)
	}
}
