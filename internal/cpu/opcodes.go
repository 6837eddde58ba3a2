package cpu

// initInstructions populates the 256-entry dispatch table. Unlisted opcodes
// default to Implied, 1 byte, 2 cycles and are handled as NOP by
// executeInstruction's default case, matching how most undocumented
// opcodes that don't alter machine state behave on real hardware.
func (cpu *CPU) initInstructions() {
	t := &cpu.instructions

	set := func(op uint8, name string, bytes, cycles uint8, mode AddressingMode) {
		t[op] = Instruction{Name: name, Bytes: bytes, Cycles: cycles, Mode: mode}
	}

	for op := range t {
		t[op] = Instruction{Bytes: 1, Cycles: 2, Mode: Implied}
	}

	// Load/store
	set(0xA9, "LDA", 2, 2, Immediate)
	set(0xA5, "LDA", 2, 3, ZeroPage)
	set(0xB5, "LDA", 2, 4, ZeroPageX)
	set(0xAD, "LDA", 3, 4, Absolute)
	set(0xBD, "LDA", 3, 4, AbsoluteX)
	set(0xB9, "LDA", 3, 4, AbsoluteY)
	set(0xA1, "LDA", 2, 6, IndexedIndirect)
	set(0xB1, "LDA", 2, 5, IndirectIndexed)

	set(0xA2, "LDX", 2, 2, Immediate)
	set(0xA6, "LDX", 2, 3, ZeroPage)
	set(0xB6, "LDX", 2, 4, ZeroPageY)
	set(0xAE, "LDX", 3, 4, Absolute)
	set(0xBE, "LDX", 3, 4, AbsoluteY)

	set(0xA0, "LDY", 2, 2, Immediate)
	set(0xA4, "LDY", 2, 3, ZeroPage)
	set(0xB4, "LDY", 2, 4, ZeroPageX)
	set(0xAC, "LDY", 3, 4, Absolute)
	set(0xBC, "LDY", 3, 4, AbsoluteX)

	set(0x85, "STA", 2, 3, ZeroPage)
	set(0x95, "STA", 2, 4, ZeroPageX)
	set(0x8D, "STA", 3, 4, Absolute)
	set(0x9D, "STA", 3, 5, AbsoluteX)
	set(0x99, "STA", 3, 5, AbsoluteY)
	set(0x81, "STA", 2, 6, IndexedIndirect)
	set(0x91, "STA", 2, 6, IndirectIndexed)

	set(0x86, "STX", 2, 3, ZeroPage)
	set(0x96, "STX", 2, 4, ZeroPageY)
	set(0x8E, "STX", 3, 4, Absolute)

	set(0x84, "STY", 2, 3, ZeroPage)
	set(0x94, "STY", 2, 4, ZeroPageX)
	set(0x8C, "STY", 3, 4, Absolute)

	// Transfers
	set(0xAA, "TAX", 1, 2, Implied)
	set(0xA8, "TAY", 1, 2, Implied)
	set(0xBA, "TSX", 1, 2, Implied)
	set(0x8A, "TXA", 1, 2, Implied)
	set(0x9A, "TXS", 1, 2, Implied)
	set(0x98, "TYA", 1, 2, Implied)

	// Stack
	set(0x48, "PHA", 1, 3, Implied)
	set(0x08, "PHP", 1, 3, Implied)
	set(0x68, "PLA", 1, 4, Implied)
	set(0x28, "PLP", 1, 4, Implied)

	// Logical
	set(0x29, "AND", 2, 2, Immediate)
	set(0x25, "AND", 2, 3, ZeroPage)
	set(0x35, "AND", 2, 4, ZeroPageX)
	set(0x2D, "AND", 3, 4, Absolute)
	set(0x3D, "AND", 3, 4, AbsoluteX)
	set(0x39, "AND", 3, 4, AbsoluteY)
	set(0x21, "AND", 2, 6, IndexedIndirect)
	set(0x31, "AND", 2, 5, IndirectIndexed)

	set(0x09, "ORA", 2, 2, Immediate)
	set(0x05, "ORA", 2, 3, ZeroPage)
	set(0x15, "ORA", 2, 4, ZeroPageX)
	set(0x0D, "ORA", 3, 4, Absolute)
	set(0x1D, "ORA", 3, 4, AbsoluteX)
	set(0x19, "ORA", 3, 4, AbsoluteY)
	set(0x01, "ORA", 2, 6, IndexedIndirect)
	set(0x11, "ORA", 2, 5, IndirectIndexed)

	set(0x49, "EOR", 2, 2, Immediate)
	set(0x45, "EOR", 2, 3, ZeroPage)
	set(0x55, "EOR", 2, 4, ZeroPageX)
	set(0x4D, "EOR", 3, 4, Absolute)
	set(0x5D, "EOR", 3, 4, AbsoluteX)
	set(0x59, "EOR", 3, 4, AbsoluteY)
	set(0x41, "EOR", 2, 6, IndexedIndirect)
	set(0x51, "EOR", 2, 5, IndirectIndexed)

	set(0x24, "BIT", 2, 3, ZeroPage)
	set(0x2C, "BIT", 3, 4, Absolute)

	// Arithmetic
	set(0x69, "ADC", 2, 2, Immediate)
	set(0x65, "ADC", 2, 3, ZeroPage)
	set(0x75, "ADC", 2, 4, ZeroPageX)
	set(0x6D, "ADC", 3, 4, Absolute)
	set(0x7D, "ADC", 3, 4, AbsoluteX)
	set(0x79, "ADC", 3, 4, AbsoluteY)
	set(0x61, "ADC", 2, 6, IndexedIndirect)
	set(0x71, "ADC", 2, 5, IndirectIndexed)

	set(0xE9, "SBC", 2, 2, Immediate)
	set(0xEB, "SBC", 2, 2, Immediate) // illegal duplicate
	set(0xE5, "SBC", 2, 3, ZeroPage)
	set(0xF5, "SBC", 2, 4, ZeroPageX)
	set(0xED, "SBC", 3, 4, Absolute)
	set(0xFD, "SBC", 3, 4, AbsoluteX)
	set(0xF9, "SBC", 3, 4, AbsoluteY)
	set(0xE1, "SBC", 2, 6, IndexedIndirect)
	set(0xF1, "SBC", 2, 5, IndirectIndexed)

	set(0xC9, "CMP", 2, 2, Immediate)
	set(0xC5, "CMP", 2, 3, ZeroPage)
	set(0xD5, "CMP", 2, 4, ZeroPageX)
	set(0xCD, "CMP", 3, 4, Absolute)
	set(0xDD, "CMP", 3, 4, AbsoluteX)
	set(0xD9, "CMP", 3, 4, AbsoluteY)
	set(0xC1, "CMP", 2, 6, IndexedIndirect)
	set(0xD1, "CMP", 2, 5, IndirectIndexed)

	set(0xE0, "CPX", 2, 2, Immediate)
	set(0xE4, "CPX", 2, 3, ZeroPage)
	set(0xEC, "CPX", 3, 4, Absolute)

	set(0xC0, "CPY", 2, 2, Immediate)
	set(0xC4, "CPY", 2, 3, ZeroPage)
	set(0xCC, "CPY", 3, 4, Absolute)

	// Increments/decrements
	set(0xE6, "INC", 2, 5, ZeroPage)
	set(0xF6, "INC", 2, 6, ZeroPageX)
	set(0xEE, "INC", 3, 6, Absolute)
	set(0xFE, "INC", 3, 7, AbsoluteX)
	set(0xC6, "DEC", 2, 5, ZeroPage)
	set(0xD6, "DEC", 2, 6, ZeroPageX)
	set(0xCE, "DEC", 3, 6, Absolute)
	set(0xDE, "DEC", 3, 7, AbsoluteX)
	set(0xE8, "INX", 1, 2, Implied)
	set(0xC8, "INY", 1, 2, Implied)
	set(0xCA, "DEX", 1, 2, Implied)
	set(0x88, "DEY", 1, 2, Implied)

	// Shifts/rotates
	set(0x0A, "ASL", 1, 2, Accumulator)
	set(0x06, "ASL", 2, 5, ZeroPage)
	set(0x16, "ASL", 2, 6, ZeroPageX)
	set(0x0E, "ASL", 3, 6, Absolute)
	set(0x1E, "ASL", 3, 7, AbsoluteX)

	set(0x4A, "LSR", 1, 2, Accumulator)
	set(0x46, "LSR", 2, 5, ZeroPage)
	set(0x56, "LSR", 2, 6, ZeroPageX)
	set(0x4E, "LSR", 3, 6, Absolute)
	set(0x5E, "LSR", 3, 7, AbsoluteX)

	set(0x2A, "ROL", 1, 2, Accumulator)
	set(0x26, "ROL", 2, 5, ZeroPage)
	set(0x36, "ROL", 2, 6, ZeroPageX)
	set(0x2E, "ROL", 3, 6, Absolute)
	set(0x3E, "ROL", 3, 7, AbsoluteX)

	set(0x6A, "ROR", 1, 2, Accumulator)
	set(0x66, "ROR", 2, 5, ZeroPage)
	set(0x76, "ROR", 2, 6, ZeroPageX)
	set(0x6E, "ROR", 3, 6, Absolute)
	set(0x7E, "ROR", 3, 7, AbsoluteX)

	// Jumps/calls
	set(0x4C, "JMP", 3, 3, Absolute)
	set(0x6C, "JMP", 3, 5, Indirect)
	set(0x20, "JSR", 3, 6, Absolute)
	set(0x60, "RTS", 1, 6, Implied)
	set(0x40, "RTI", 1, 6, Implied)

	// Branches (base cycles; +1 taken, +1 more page-cross, added in branch)
	set(0x90, "BCC", 2, 2, Relative)
	set(0xB0, "BCS", 2, 2, Relative)
	set(0xF0, "BEQ", 2, 2, Relative)
	set(0x30, "BMI", 2, 2, Relative)
	set(0xD0, "BNE", 2, 2, Relative)
	set(0x10, "BPL", 2, 2, Relative)
	set(0x50, "BVC", 2, 2, Relative)
	set(0x70, "BVS", 2, 2, Relative)

	// Status flag ops
	set(0x18, "CLC", 1, 2, Implied)
	set(0xD8, "CLD", 1, 2, Implied)
	set(0x58, "CLI", 1, 2, Implied)
	set(0xB8, "CLV", 1, 2, Implied)
	set(0x38, "SEC", 1, 2, Implied)
	set(0xF8, "SED", 1, 2, Implied)
	set(0x78, "SEI", 1, 2, Implied)

	// System
	set(0x00, "BRK", 2, 7, Implied)
	set(0xEA, "NOP", 1, 2, Implied)

	// Illegal opcodes exercised by real NES software
	set(0xA3, "LAX", 2, 6, IndexedIndirect)
	set(0xA7, "LAX", 2, 3, ZeroPage)
	set(0xAF, "LAX", 3, 4, Absolute)
	set(0xB3, "LAX", 2, 5, IndirectIndexed)
	set(0xB7, "LAX", 2, 4, ZeroPageY)
	set(0xBF, "LAX", 3, 4, AbsoluteY)

	set(0x83, "SAX", 2, 6, IndexedIndirect)
	set(0x87, "SAX", 2, 3, ZeroPage)
	set(0x8F, "SAX", 3, 4, Absolute)
	set(0x97, "SAX", 2, 4, ZeroPageY)

	// AXA/SAY: unstable stores whose written value depends on the high
	// byte of the effective address, a side effect of how the 6502's
	// internal address-high latch feeds these undocumented opcodes.
	set(0x9F, "AXA", 3, 5, AbsoluteY)
	set(0x93, "AXA", 2, 6, IndirectIndexed)
	set(0x9C, "SAY", 3, 5, AbsoluteX)

	set(0xC3, "DCP", 2, 8, IndexedIndirect)
	set(0xC7, "DCP", 2, 5, ZeroPage)
	set(0xCF, "DCP", 3, 6, Absolute)
	set(0xD3, "DCP", 2, 8, IndirectIndexed)
	set(0xD7, "DCP", 2, 6, ZeroPageX)
	set(0xDB, "DCP", 3, 7, AbsoluteY)
	set(0xDF, "DCP", 3, 7, AbsoluteX)

	set(0xE3, "ISC", 2, 8, IndexedIndirect)
	set(0xE7, "ISC", 2, 5, ZeroPage)
	set(0xEF, "ISC", 3, 6, Absolute)
	set(0xF3, "ISC", 2, 8, IndirectIndexed)
	set(0xF7, "ISC", 2, 6, ZeroPageX)
	set(0xFB, "ISC", 3, 7, AbsoluteY)
	set(0xFF, "ISC", 3, 7, AbsoluteX)

	set(0x03, "SLO", 2, 8, IndexedIndirect)
	set(0x07, "SLO", 2, 5, ZeroPage)
	set(0x0F, "SLO", 3, 6, Absolute)
	set(0x13, "SLO", 2, 8, IndirectIndexed)
	set(0x17, "SLO", 2, 6, ZeroPageX)
	set(0x1B, "SLO", 3, 7, AbsoluteY)
	set(0x1F, "SLO", 3, 7, AbsoluteX)

	set(0x23, "RLA", 2, 8, IndexedIndirect)
	set(0x27, "RLA", 2, 5, ZeroPage)
	set(0x2F, "RLA", 3, 6, Absolute)
	set(0x33, "RLA", 2, 8, IndirectIndexed)
	set(0x37, "RLA", 2, 6, ZeroPageX)
	set(0x3B, "RLA", 3, 7, AbsoluteY)
	set(0x3F, "RLA", 3, 7, AbsoluteX)

	set(0x43, "SRE", 2, 8, IndexedIndirect)
	set(0x47, "SRE", 2, 5, ZeroPage)
	set(0x4F, "SRE", 3, 6, Absolute)
	set(0x53, "SRE", 2, 8, IndirectIndexed)
	set(0x57, "SRE", 2, 6, ZeroPageX)
	set(0x5B, "SRE", 3, 7, AbsoluteY)
	set(0x5F, "SRE", 3, 7, AbsoluteX)

	set(0x63, "RRA", 2, 8, IndexedIndirect)
	set(0x67, "RRA", 2, 5, ZeroPage)
	set(0x6F, "RRA", 3, 6, Absolute)
	set(0x73, "RRA", 2, 8, IndirectIndexed)
	set(0x77, "RRA", 2, 6, ZeroPageX)
	set(0x7B, "RRA", 3, 7, AbsoluteY)
	set(0x7F, "RRA", 3, 7, AbsoluteX)

	// Illegal NOPs with various addressing modes; real cartridges rely on
	// their cycle cost and operand-byte consumption, never their effect.
	for _, op := range []uint8{0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA} {
		set(op, "NOP", 1, 2, Implied)
	}
	for _, op := range []uint8{0x80, 0x82, 0x89, 0xC2, 0xE2} {
		set(op, "NOP", 2, 2, Immediate)
	}
	for _, op := range []uint8{0x04, 0x44, 0x64} {
		set(op, "NOP", 2, 3, ZeroPage)
	}
	for _, op := range []uint8{0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4} {
		set(op, "NOP", 2, 4, ZeroPageX)
	}
	set(0x0C, "NOP", 3, 4, Absolute)
	for _, op := range []uint8{0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC} {
		set(op, "NOP", 3, 4, AbsoluteX)
	}
}

// executeInstruction performs opcode's effect at address (already resolved
// by getOperandAddress) and returns any extra cycles billed by the
// instruction's own behavior (branches taken/page-crossed). Page-cross
// penalties for addressing modes are applied by the caller.
func (cpu *CPU) executeInstruction(opcode uint8, address uint16, pageCrossed bool) uint8 {
	switch opcode {
	case 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1:
		cpu.A = cpu.memory.Read(address)
		cpu.setZN(cpu.A)

	case 0xA2, 0xA6, 0xB6, 0xAE, 0xBE:
		cpu.X = cpu.memory.Read(address)
		cpu.setZN(cpu.X)

	case 0xA0, 0xA4, 0xB4, 0xAC, 0xBC:
		cpu.Y = cpu.memory.Read(address)
		cpu.setZN(cpu.Y)

	case 0x85, 0x95, 0x8D, 0x9D, 0x99, 0x81, 0x91:
		cpu.memory.Write(address, cpu.A)

	case 0x86, 0x96, 0x8E:
		cpu.memory.Write(address, cpu.X)

	case 0x84, 0x94, 0x8C:
		cpu.memory.Write(address, cpu.Y)

	case 0xAA:
		cpu.X = cpu.A
		cpu.setZN(cpu.X)
	case 0xA8:
		cpu.Y = cpu.A
		cpu.setZN(cpu.Y)
	case 0xBA:
		cpu.X = cpu.SP
		cpu.setZN(cpu.X)
	case 0x8A:
		cpu.A = cpu.X
		cpu.setZN(cpu.A)
	case 0x9A:
		cpu.SP = cpu.X
	case 0x98:
		cpu.A = cpu.Y
		cpu.setZN(cpu.A)

	case 0x48:
		cpu.push(cpu.A)
	case 0x08:
		cpu.push(cpu.StatusByte() | bFlagMask)
	case 0x68:
		cpu.A = cpu.pop()
		cpu.setZN(cpu.A)
	case 0x28:
		cpu.SetStatusByte(cpu.pop())

	case 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31:
		cpu.A &= cpu.memory.Read(address)
		cpu.setZN(cpu.A)
	case 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11:
		cpu.A |= cpu.memory.Read(address)
		cpu.setZN(cpu.A)
	case 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51:
		cpu.A ^= cpu.memory.Read(address)
		cpu.setZN(cpu.A)

	case 0x24, 0x2C:
		val := cpu.memory.Read(address)
		cpu.Z = (cpu.A & val) == 0
		cpu.N = val&nFlagMask != 0
		cpu.V = val&vFlagMask != 0

	case 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71:
		cpu.adc(cpu.memory.Read(address))
	case 0xE9, 0xEB, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1:
		cpu.adc(^cpu.memory.Read(address))

	case 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1:
		cpu.compare(cpu.A, cpu.memory.Read(address))
	case 0xE0, 0xE4, 0xEC:
		cpu.compare(cpu.X, cpu.memory.Read(address))
	case 0xC0, 0xC4, 0xCC:
		cpu.compare(cpu.Y, cpu.memory.Read(address))

	case 0xE6, 0xF6, 0xEE, 0xFE:
		val := cpu.memory.Read(address) + 1
		cpu.memory.Write(address, val)
		cpu.setZN(val)
	case 0xC6, 0xD6, 0xCE, 0xDE:
		val := cpu.memory.Read(address) - 1
		cpu.memory.Write(address, val)
		cpu.setZN(val)
	case 0xE8:
		cpu.X++
		cpu.setZN(cpu.X)
	case 0xC8:
		cpu.Y++
		cpu.setZN(cpu.Y)
	case 0xCA:
		cpu.X--
		cpu.setZN(cpu.X)
	case 0x88:
		cpu.Y--
		cpu.setZN(cpu.Y)

	case 0x0A:
		cpu.C = cpu.A&nFlagMask != 0
		cpu.A <<= 1
		cpu.setZN(cpu.A)
	case 0x06, 0x16, 0x0E, 0x1E:
		val := cpu.memory.Read(address)
		cpu.C = val&nFlagMask != 0
		val <<= 1
		cpu.memory.Write(address, val)
		cpu.setZN(val)

	case 0x4A:
		cpu.C = cpu.A&0x01 != 0
		cpu.A >>= 1
		cpu.setZN(cpu.A)
	case 0x46, 0x56, 0x4E, 0x5E:
		val := cpu.memory.Read(address)
		cpu.C = val&0x01 != 0
		val >>= 1
		cpu.memory.Write(address, val)
		cpu.setZN(val)

	case 0x2A:
		oldC := cpu.C
		cpu.C = cpu.A&nFlagMask != 0
		cpu.A <<= 1
		if oldC {
			cpu.A |= 0x01
		}
		cpu.setZN(cpu.A)
	case 0x26, 0x36, 0x2E, 0x3E:
		val := cpu.memory.Read(address)
		oldC := cpu.C
		cpu.C = val&nFlagMask != 0
		val <<= 1
		if oldC {
			val |= 0x01
		}
		cpu.memory.Write(address, val)
		cpu.setZN(val)

	case 0x6A:
		oldC := cpu.C
		cpu.C = cpu.A&0x01 != 0
		cpu.A >>= 1
		if oldC {
			cpu.A |= nFlagMask
		}
		cpu.setZN(cpu.A)
	case 0x66, 0x76, 0x6E, 0x7E:
		val := cpu.memory.Read(address)
		oldC := cpu.C
		cpu.C = val&0x01 != 0
		val >>= 1
		if oldC {
			val |= nFlagMask
		}
		cpu.memory.Write(address, val)
		cpu.setZN(val)

	case 0x4C, 0x6C:
		cpu.PC = address
	case 0x20:
		cpu.pushWord(cpu.PC - 1)
		cpu.PC = address
	case 0x60:
		cpu.PC = cpu.popWord() + 1
	case 0x40:
		cpu.SetStatusByte(cpu.pop())
		cpu.PC = cpu.popWord()

	case 0x90:
		return cpu.branch(!cpu.C, address, pageCrossed)
	case 0xB0:
		return cpu.branch(cpu.C, address, pageCrossed)
	case 0xF0:
		return cpu.branch(cpu.Z, address, pageCrossed)
	case 0x30:
		return cpu.branch(cpu.N, address, pageCrossed)
	case 0xD0:
		return cpu.branch(!cpu.Z, address, pageCrossed)
	case 0x10:
		return cpu.branch(!cpu.N, address, pageCrossed)
	case 0x50:
		return cpu.branch(!cpu.V, address, pageCrossed)
	case 0x70:
		return cpu.branch(cpu.V, address, pageCrossed)

	case 0x18:
		cpu.C = false
	case 0xD8:
		cpu.D = false
	case 0x58:
		cpu.I = false
	case 0xB8:
		cpu.V = false
	case 0x38:
		cpu.C = true
	case 0xF8:
		cpu.D = true
	case 0x78:
		cpu.I = true

	case 0x00:
		cpu.brk()

	case 0xEA:
		// NOP

	// Illegal opcodes
	case 0xA3, 0xA7, 0xAF, 0xB3, 0xB7, 0xBF: // LAX
		cpu.A = cpu.memory.Read(address)
		cpu.X = cpu.A
		cpu.setZN(cpu.A)
	case 0x83, 0x87, 0x8F, 0x97: // SAX
		cpu.memory.Write(address, cpu.A&cpu.X)
	case 0x9F, 0x93: // AXA
		hi := uint8(address >> 8)
		cpu.memory.Write(address, (cpu.A&cpu.X&hi)+1)
	case 0x9C: // SAY
		hi := uint8(address >> 8)
		cpu.memory.Write(address, cpu.Y&(hi+1))
	case 0xC3, 0xC7, 0xCF, 0xD3, 0xD7, 0xDB, 0xDF: // DCP
		val := cpu.memory.Read(address) - 1
		cpu.memory.Write(address, val)
		cpu.compare(cpu.A, val)
	case 0xE3, 0xE7, 0xEF, 0xF3, 0xF7, 0xFB, 0xFF: // ISC
		val := cpu.memory.Read(address) + 1
		cpu.memory.Write(address, val)
		cpu.adc(^val)
	case 0x03, 0x07, 0x0F, 0x13, 0x17, 0x1B, 0x1F: // SLO
		val := cpu.memory.Read(address)
		cpu.C = val&nFlagMask != 0
		val <<= 1
		cpu.memory.Write(address, val)
		cpu.A |= val
		cpu.setZN(cpu.A)
	case 0x23, 0x27, 0x2F, 0x33, 0x37, 0x3B, 0x3F: // RLA
		val := cpu.memory.Read(address)
		oldC := cpu.C
		cpu.C = val&nFlagMask != 0
		val <<= 1
		if oldC {
			val |= 0x01
		}
		cpu.memory.Write(address, val)
		cpu.A &= val
		cpu.setZN(cpu.A)
	case 0x43, 0x47, 0x4F, 0x53, 0x57, 0x5B, 0x5F: // SRE
		val := cpu.memory.Read(address)
		cpu.C = val&0x01 != 0
		val >>= 1
		cpu.memory.Write(address, val)
		cpu.A ^= val
		cpu.setZN(cpu.A)
	case 0x63, 0x67, 0x6F, 0x73, 0x77, 0x7B, 0x7F: // RRA
		val := cpu.memory.Read(address)
		oldC := cpu.C
		cpu.C = val&0x01 != 0
		val >>= 1
		if oldC {
			val |= nFlagMask
		}
		cpu.memory.Write(address, val)
		cpu.adc(val)

	default:
		// Undocumented NOP variants: operand already consumed by
		// getOperandAddress, no further effect.
	}
	return 0
}

// adc implements both ADC and SBC: SBC is ADC with the operand inverted,
// so the same overflow/carry math covers both.
func (cpu *CPU) adc(operand uint8) {
	sum := uint16(cpu.A) + uint16(operand)
	if cpu.C {
		sum++
	}
	result := uint8(sum)
	cpu.C = sum > 0xFF
	cpu.V = (cpu.A^operand)&nFlagMask == 0 && (cpu.A^result)&nFlagMask != 0
	cpu.A = result
	cpu.setZN(cpu.A)
}

func (cpu *CPU) compare(reg, val uint8) {
	cpu.C = reg >= val
	diff := reg - val
	cpu.setZN(diff)
}

// branch implements the shared branch logic: no extra cycles if not taken,
// +1 if taken, +1 more if the branch crosses a page boundary.
func (cpu *CPU) branch(condition bool, target uint16, pageCrossed bool) uint8 {
	if !condition {
		return 0
	}
	cpu.PC = target
	if pageCrossed {
		return 2
	}
	return 1
}

// brk pushes PC+2 and status (Break and Unused both set) and jumps through
// the IRQ/BRK vector. Real hardware always executes BRK regardless of the
// InterruptDisable flag; I is only a mask on IRQ and NMI lines, not on the
// software interrupt instruction.
func (cpu *CPU) brk() {
	cpu.pushWord(cpu.PC + 1)
	cpu.push(cpu.StatusByte() | bFlagMask)
	cpu.I = true
	low := uint16(cpu.memory.Read(irqVector))
	high := uint16(cpu.memory.Read(irqVector + 1))
	cpu.PC = (high << 8) | low
}
