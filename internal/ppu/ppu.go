// Package ppu implements the NES Picture Processing Unit (2C02): the
// cycle-by-cycle background/sprite pipeline, the loopy scroll registers,
// and the $2000-$2007 CPU-visible register file.
package ppu

import (
	"log"

	"nescore/internal/cartridge"
)

const (
	screenWidth  = 256
	screenHeight = 240

	ctrlNametableMask   = 0x03
	ctrlIncrementMask   = 0x04
	ctrlSpritePattern   = 0x08
	ctrlBGPattern       = 0x10
	ctrlSpriteSize      = 0x20
	ctrlNMIEnable       = 0x80
	maskGreyscale       = 0x01
	maskShowBGLeft      = 0x02
	maskShowSpriteLeft  = 0x04
	maskShowBackground  = 0x08
	maskShowSprites     = 0x10
	statusSpriteOverflow = 0x20
	statusSprite0Hit     = 0x40
	statusVBlank         = 0x80
)

// ChrAccessor is the cartridge-side interface the PPU reads/writes pattern
// data through; mappers own CHR bank switching, the PPU only knows CHR
// addresses 0x0000-0x1FFF.
type ChrAccessor interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, val uint8)
	OnScanline()
}

type spriteSlot struct {
	patternLo, patternHi uint8
	xCounter             uint8
	attributes           uint8
	isSprite0            bool
}

type secondaryOAMEntry struct {
	y, tile, attr, x uint8
	index            uint8
}

// PPU is a 2C02. Construct with New, attach a cartridge with AttachCartridge,
// then drive it one dot at a time with Tick.
type PPU struct {
	ctrl, mask, status uint8
	oamAddr            uint8

	v, t loopy
	fineX uint8
	writeLatch bool
	readBuffer uint8

	oam [256]uint8

	scanline int
	cycle    int
	frame    uint64
	oddFrame bool

	nmiPending bool

	nextTileID, nextTileAttrib, nextTileLo, nextTileHi uint8
	bgPatternLo, bgPatternHi                           uint16
	bgAttribLo, bgAttribHi                              uint16

	secondary      [8]secondaryOAMEntry
	secondaryCount int
	secondarySprite0 bool

	sprites        [8]spriteSlot
	spriteCount    int
	sprite0Present bool

	nametables [2048]uint8
	paletteRAM [32]uint8

	chr    ChrAccessor
	mirror cartridge.MirrorMode

	frameBuffer [screenWidth * screenHeight]uint8

	logger *log.Logger
}

// New creates a PPU with no cartridge attached; call AttachCartridge before
// the first Tick.
func New() *PPU {
	p := &PPU{scanline: -1}
	return p
}

// SetLogger installs an optional diagnostic sink; nil disables logging.
func (p *PPU) SetLogger(l *log.Logger) {
	p.logger = l
}

// AttachCartridge wires the PPU to a cartridge's CHR access and nametable
// mirroring mode. Must be called before Tick.
func (p *PPU) AttachCartridge(chr ChrAccessor, mirror cartridge.MirrorMode) {
	p.chr = chr
	p.mirror = mirror
}

// Reset returns the PPU to its post-power-up state.
func (p *PPU) Reset() {
	p.ctrl, p.mask, p.status = 0, 0, 0
	p.oamAddr = 0
	p.v, p.t = loopy{}, loopy{}
	p.fineX = 0
	p.writeLatch = false
	p.readBuffer = 0
	p.scanline, p.cycle = -1, 0
	p.frame = 0
	p.oddFrame = false
	p.nmiPending = false
}

// TakeNMI reports whether the PPU has raised NMI since the last call, and
// clears the pending flag. The bus calls this once per CPU.Step to decide
// whether to service an NMI before the next opcode fetch.
func (p *PPU) TakeNMI() bool {
	pending := p.nmiPending
	p.nmiPending = false
	return pending
}

// Framebuffer returns the current frame as 256x240 palette indices (0-63);
// the host maps through Palette to get RGB.
func (p *PPU) Framebuffer() *[screenWidth * screenHeight]uint8 {
	return &p.frameBuffer
}

// FrameCount returns the number of frames completed since Reset. The host
// polls this to detect when a frame has finished rendering.
func (p *PPU) FrameCount() uint64 {
	return p.frame
}

func (p *PPU) renderingEnabled() bool {
	return p.mask&(maskShowBackground|maskShowSprites) != 0
}

// ReadRegister handles a CPU read from $2000-$2007 (the bus mirrors this
// window every 8 bytes before calling in).
func (p *PPU) ReadRegister(reg uint16) uint8 {
	switch reg {
	case 0x2002:
		val := p.status
		p.status &^= statusVBlank
		p.writeLatch = false
		return val
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister handles a CPU write to $2000-$2007.
func (p *PPU) WriteRegister(reg uint16, val uint8) {
	switch reg {
	case 0x2000:
		wasNMIEnabled := p.ctrl&ctrlNMIEnable != 0
		p.ctrl = val
		p.t.setNametableSelect(uint16(val & ctrlNametableMask))
		// If NMI output was just enabled while already in vblank, the NMI
		// line is asserted immediately rather than waiting for the next
		// vblank edge.
		if !wasNMIEnabled && p.ctrl&ctrlNMIEnable != 0 && p.status&statusVBlank != 0 {
			p.nmiPending = true
		}
	case 0x2001:
		p.mask = val
	case 0x2003:
		p.oamAddr = val
	case 0x2004:
		p.oam[p.oamAddr] = val
		p.oamAddr++
	case 0x2005:
		p.writeScroll(val)
	case 0x2006:
		p.writeAddr(val)
	case 0x2007:
		p.writePPUData(val)
	}
}

// WriteOAM writes OAM directly at an explicit index, used by the bus's
// $4014 OAM DMA.
func (p *PPU) WriteOAM(index uint8, val uint8) {
	p.oam[index] = val
}

func (p *PPU) writeScroll(val uint8) {
	if !p.writeLatch {
		p.t.setCoarseX(uint16(val >> 3))
		p.fineX = val & 0x07
	} else {
		p.t.setCoarseY(uint16(val >> 3))
		p.t.setFineY(uint16(val & 0x07))
	}
	p.writeLatch = !p.writeLatch
}

func (p *PPU) writeAddr(val uint8) {
	if !p.writeLatch {
		p.t.data = (p.t.data & 0x00FF) | (uint16(val&0x3F) << 8)
	} else {
		p.t.data = (p.t.data & 0x7F00) | uint16(val)
		p.v = p.t
	}
	p.writeLatch = !p.writeLatch
}

// readPPUData implements $2007's buffered-read behavior: reads below the
// palette range return the previous read's buffered value and refill the
// buffer from the new address, so real data lags one read behind; palette
// reads bypass the buffer and return immediately, but still refill it from
// the underlying nametable mirror for a subsequent non-palette read.
func (p *PPU) readPPUData() uint8 {
	addr := p.v.address()
	var result uint8
	if addr >= 0x3F00 {
		result = p.readVRAM(addr)
		p.readBuffer = p.readVRAM(addr - 0x1000)
	} else {
		result = p.readBuffer
		p.readBuffer = p.readVRAM(addr)
	}
	p.incrementVRAMAddress()
	return result
}

func (p *PPU) writePPUData(val uint8) {
	p.writeVRAM(p.v.address(), val)
	p.incrementVRAMAddress()
}

func (p *PPU) incrementVRAMAddress() {
	if p.ctrl&ctrlIncrementMask != 0 {
		p.v.data += 32
	} else {
		p.v.data++
	}
}

// readVRAM/writeVRAM route a PPU-bus address ($0000-$3FFF) to pattern
// tables (cartridge CHR), nametable RAM (mirrored per cartridge.MirrorMode),
// or palette RAM (mirrored per the 2C02's palette aliasing rules).
func (p *PPU) readVRAM(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return p.chr.ReadCHR(addr)
	case addr < 0x3F00:
		return p.nametables[p.mapNametable(addr)]
	default:
		return p.paletteRAM[mapPaletteAddr(addr)]
	}
}

func (p *PPU) writeVRAM(addr uint16, val uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		p.chr.WriteCHR(addr, val)
	case addr < 0x3F00:
		p.nametables[p.mapNametable(addr)] = val
	default:
		p.paletteRAM[mapPaletteAddr(addr)] = val
	}
}

// mapNametable resolves a $2000-$3EFF address to an index into the 2KB
// physical nametable RAM per the cartridge's mirroring mode.
func (p *PPU) mapNametable(addr uint16) uint16 {
	a := (addr - 0x2000) % 0x1000
	table := a / 0x0400
	offset := a % 0x0400

	switch p.mirror {
	case cartridge.MirrorVertical:
		return (table%2)*0x0400 + offset
	case cartridge.MirrorOneScreenLow:
		return offset
	case cartridge.MirrorOneScreenHigh:
		return 0x0400 + offset
	case cartridge.MirrorFourScreen:
		// No four-screen cartridge in this core's supported mapper set
		// carries the extra 2KB four-screen needs; fall back to
		// horizontal so out-of-range ROMs still render something.
		fallthrough
	default: // MirrorHorizontal
		return (table/2)*0x0400 + offset
	}
}

// mapPaletteAddr mirrors $3F00-$3FFF down to the 32-entry palette RAM, with
// the hardware quirk that the sprite palettes' color-0 entries at $3F10/
// $3F14/$3F18/$3F1C alias the background palettes' color-0 entries at
// $3F00/$3F04/$3F08/$3F0C.
func mapPaletteAddr(addr uint16) uint16 {
	a := (addr - 0x3F00) % 0x20
	if a >= 0x10 && a%4 == 0 {
		a -= 0x10
	}
	return a
}
