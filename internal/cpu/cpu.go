// Package cpu implements the 6502 CPU at the heart of the NES: 151 official
// opcodes plus the illegal opcodes real NES software relies on, 13
// addressing modes, the stack, and NMI/BRK handling.
package cpu

import "log"

// AddressingMode identifies how an instruction's operand address is formed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect        // JMP only; reproduces the page-boundary fetch bug
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE // also BRK's vector; this core never raises IRQ
)

// Instruction is one row of the 256-entry opcode table.
type Instruction struct {
	Name   string
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// MemoryInterface is the bus the CPU reads and writes through. Every access
// may have side effects (PPU register reads/writes, mapper bank switches),
// so the CPU never caches a value across accesses that the bus contract
// doesn't guarantee are idempotent.
type MemoryInterface interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

// CPU is a MOS 6502 (NES variant: no decimal-mode arithmetic, no IRQ input).
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, B, V, N bool

	memory MemoryInterface
	cycles uint64

	instructions [256]Instruction

	logger *log.Logger
}

// New creates a CPU wired to the given bus. Call Reset before Step.
func New(memory MemoryInterface) *CPU {
	cpu := &CPU{memory: memory}
	cpu.initInstructions()
	return cpu
}

// SetLogger installs an optional diagnostic sink; nil disables logging.
func (cpu *CPU) SetLogger(l *log.Logger) {
	cpu.logger = l
}

// Cycles returns the running total of CPU cycles consumed since the CPU was
// created. Reset adds its own 8-cycle cost to the total and does not clear it.
func (cpu *CPU) Cycles() uint64 {
	return cpu.cycles
}

// TickCycles advances the cycle counter for bus-induced stalls (OAM DMA)
// that don't correspond to an instruction the CPU itself executed.
func (cpu *CPU) TickCycles(n uint64) {
	cpu.cycles += n
}

// Reset performs the 6502 power-up/reset sequence: registers to their
// documented power-up state, SP = $FD, status = $24 (I set, unused set),
// PC loaded from the reset vector. Costs 8 cycles (reset signal
// acknowledgment, SP decremented three times without bus writes, two
// vector reads), matching the real reset sequence's cycle budget (spec §4.G).
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.C, cpu.Z, cpu.D, cpu.V, cpu.N = false, false, false, false, false
	cpu.I = true
	// Break is never persistent CPU state: it's synthesized only at push
	// time (BRK/IRQ set it, NMI clears it), so status here is $24, not $34.
	cpu.B = false

	low := uint16(cpu.memory.Read(resetVector))
	high := uint16(cpu.memory.Read(resetVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 8
}

// Step executes one instruction and returns the cycles it consumed. If
// nmiPending is true, no opcode is fetched: the CPU instead services the
// NMI (7 cycles) and returns, per spec §4.G's per-step ordering — NMI
// service or opcode fetch are mutually exclusive within one Step call.
func (cpu *CPU) Step(nmiPending bool) uint64 {
	if nmiPending {
		cpu.handleNMI()
		return 7
	}

	opcode := cpu.memory.Read(cpu.PC)
	inst := cpu.instructions[opcode]

	address, pageCrossed := cpu.getOperandAddress(inst.Mode)
	extraCycles := cpu.executeInstruction(opcode, address, pageCrossed)

	if pageCrossed && extraCyclesOnPageCross(opcode) {
		extraCycles++
	}

	total := uint64(inst.Cycles) + uint64(extraCycles)
	cpu.cycles += total
	return total
}

// extraCyclesOnPageCross reports whether this opcode bills an extra cycle
// when its indexed/indirect addressing crosses a page boundary. Stores and
// read-modify-write instructions always pay the indexed-addressing cost
// up front (already in the table's base cycle count) and never bill extra;
// only reads are penalized for the crossing itself.
func extraCyclesOnPageCross(opcode uint8) bool {
	switch opcode {
	case 0x9D, 0x99, 0x91: // STA abs,X / abs,Y / (zp),Y
		return false
	case 0xBD, 0xB9, 0xB1, 0xBE, 0xBC, 0x7D, 0x79, 0x71, 0x3D, 0x39, 0x31,
		0x1D, 0x19, 0x11, 0x5D, 0x59, 0x51, 0xDD, 0xD9, 0xD1,
		0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC,
		0xBF, 0xB3: // LAX absolute,Y / (zp),Y
		return true
	default:
		return false
	}
}

// getOperandAddress resolves the effective address for mode, advancing PC
// past the instruction's operand bytes, and reports whether a page
// boundary was crossed (relevant only to instructions that bill for it).
func (cpu *CPU) getOperandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		addr := cpu.PC + 1
		cpu.PC += 2
		return addr, false

	case ZeroPage:
		addr := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return addr, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		addr := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return addr, false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		addr := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return addr, false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC
		return newPC, (oldPC & pageMask) != (newPC & pageMask)

	case Absolute:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		cpu.PC += 3
		return (high << 8) | low, false

	case AbsoluteX:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		addr := base + uint16(cpu.X)
		cpu.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case AbsoluteY:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		addr := base + uint16(cpu.Y)
		cpu.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case Indirect: // JMP only
		lowPtr := uint16(cpu.memory.Read(cpu.PC + 1))
		highPtr := uint16(cpu.memory.Read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr

		var addr uint16
		if ptr&zeroPageMask == zeroPageMask {
			// Page-boundary bug: the high byte wraps to the start of the
			// same page instead of crossing into the next one.
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr & pageMask))
			addr = (high << 8) | low
		} else {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr + 1))
			addr = (high << 8) | low
		}
		cpu.PC += 3
		return addr, false

	case IndexedIndirect: // (zp,X)
		base := cpu.memory.Read(cpu.PC + 1)
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.memory.Read(uint16(ptr)))
		high := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		cpu.PC += 2
		return (high << 8) | low, false

	case IndirectIndexed: // (zp),Y
		ptr := uint16(cpu.memory.Read(cpu.PC + 1))
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		addr := base + uint16(cpu.Y)
		cpu.PC += 2
		return addr, (base & pageMask) != (addr & pageMask)

	default:
		return 0, false
	}
}

func (cpu *CPU) push(val uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), val)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(val uint16) {
	cpu.push(uint8(val >> 8))
	cpu.push(uint8(val & 0xFF))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(val uint8) {
	cpu.Z = val == 0
	cpu.N = val&nFlagMask != 0
}

// StatusByte packs the seven semantic flags plus the always-set Unused bit
// into the 6502 status register layout (NV-BDIZC).
func (cpu *CPU) StatusByte() uint8 {
	var s uint8
	if cpu.N {
		s |= nFlagMask
	}
	if cpu.V {
		s |= vFlagMask
	}
	s |= unusedMask
	if cpu.B {
		s |= bFlagMask
	}
	if cpu.D {
		s |= dFlagMask
	}
	if cpu.I {
		s |= iFlagMask
	}
	if cpu.Z {
		s |= zFlagMask
	}
	if cpu.C {
		s |= cFlagMask
	}
	return s
}

// SetStatusByte unpacks a status byte into the six semantic flags a real
// register holds. Break is not one of them: it's never stored, only
// synthesized onto the byte at push time, so PLP/RTI always clear it
// regardless of the popped byte's bit 4 (spec §4.G).
func (cpu *CPU) SetStatusByte(s uint8) {
	cpu.N = s&nFlagMask != 0
	cpu.V = s&vFlagMask != 0
	cpu.B = false
	cpu.D = s&dFlagMask != 0
	cpu.I = s&iFlagMask != 0
	cpu.Z = s&zFlagMask != 0
	cpu.C = s&cFlagMask != 0
}

// handleNMI pushes PC and status (Break cleared, Unused set per spec §4.G),
// sets InterruptDisable, and loads PC from the NMI vector. Costs 7 cycles.
func (cpu *CPU) handleNMI() {
	cpu.pushWord(cpu.PC)
	status := (cpu.StatusByte() &^ bFlagMask) | unusedMask
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(nmiVector))
	high := uint16(cpu.memory.Read(nmiVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 7
}
