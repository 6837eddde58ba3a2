package ppu

// Tick advances the PPU by a single dot. The bus calls this three times per
// CPU cycle, matching the NES's fixed 3:1 PPU:CPU clock ratio.
func (p *PPU) Tick() {
	if p.scanline >= 0 && p.scanline < screenHeight && p.cycle >= 1 && p.cycle <= screenWidth {
		p.renderPixel()
	}

	if p.scanline >= -1 && p.scanline < screenHeight {
		if p.scanline == -1 && p.cycle == 1 {
			p.status &^= statusVBlank | statusSprite0Hit | statusSpriteOverflow
		}

		if (p.cycle >= 2 && p.cycle < 258) || (p.cycle >= 321 && p.cycle < 338) {
			p.shiftBackground()

			switch (p.cycle - 1) % 8 {
			case 0:
				p.loadBackgroundShifters()
				p.nextTileID = p.readVRAM(0x2000 | (p.v.address() & 0x0FFF))
			case 2:
				p.nextTileAttrib = p.fetchAttribute()
			case 4:
				p.nextTileLo = p.fetchPatternByte(p.nextTileID, 0)
			case 6:
				p.nextTileHi = p.fetchPatternByte(p.nextTileID, 8)
			case 7:
				if p.renderingEnabled() {
					p.v.incrementCoarseX()
				}
			}
		}

		if p.cycle == 256 {
			if p.renderingEnabled() {
				p.v.incrementFineYAndCoarseY()
			}
		}

		if p.cycle == 257 {
			p.loadBackgroundShifters()
			if p.renderingEnabled() {
				p.v.copyHorizontal(&p.t)
			}
			p.evaluateSprites()
		}

		if p.cycle == 340 {
			p.fetchSpritePatterns()
		}

		if p.scanline == -1 && p.cycle >= 280 && p.cycle <= 304 {
			if p.renderingEnabled() {
				p.v.copyVertical(&p.t)
			}
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.status |= statusVBlank
		if p.ctrl&ctrlNMIEnable != 0 {
			p.nmiPending = true
		}
	}

	p.advanceDot()
}

func (p *PPU) advanceDot() {
	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.chr.OnScanline()
		p.scanline++
		if p.scanline == 0 && p.oddFrame && p.renderingEnabled() {
			p.cycle = 1
		}
		if p.scanline > 260 {
			p.scanline = -1
			p.frame++
			p.oddFrame = !p.oddFrame
		}
	}
}

func (p *PPU) fetchAttribute() uint8 {
	ntY := (p.v.data >> 11) & 0x01
	ntX := (p.v.data >> 10) & 0x01
	addr := uint16(0x23C0) | (ntY << 11) | (ntX << 10) |
		((p.v.coarseY() >> 2) << 3) | (p.v.coarseX() >> 2)
	attrib := p.readVRAM(addr)
	if p.v.coarseY()&0x02 != 0 {
		attrib >>= 4
	}
	if p.v.coarseX()&0x02 != 0 {
		attrib >>= 2
	}
	return attrib & 0x03
}

func (p *PPU) backgroundPatternTable() uint16 {
	if p.ctrl&ctrlBGPattern != 0 {
		return 0x1000
	}
	return 0x0000
}

func (p *PPU) fetchPatternByte(tileID uint8, planeOffset uint16) uint8 {
	addr := p.backgroundPatternTable() | (uint16(tileID) << 4) | (p.v.fineY() + planeOffset)
	return p.readVRAM(addr)
}

// loadBackgroundShifters moves the just-fetched tile into the low byte of
// each 16-bit shifter; the high byte holds the tile currently being
// shifted out for display.
func (p *PPU) loadBackgroundShifters() {
	p.bgPatternLo = (p.bgPatternLo & 0xFF00) | uint16(p.nextTileLo)
	p.bgPatternHi = (p.bgPatternHi & 0xFF00) | uint16(p.nextTileHi)

	var lo, hi uint16
	if p.nextTileAttrib&0x01 != 0 {
		lo = 0x00FF
	}
	if p.nextTileAttrib&0x02 != 0 {
		hi = 0x00FF
	}
	p.bgAttribLo = (p.bgAttribLo & 0xFF00) | lo
	p.bgAttribHi = (p.bgAttribHi & 0xFF00) | hi
}

func (p *PPU) shiftBackground() {
	if p.mask&maskShowBackground == 0 {
		return
	}
	p.bgPatternLo <<= 1
	p.bgPatternHi <<= 1
	p.bgAttribLo <<= 1
	p.bgAttribHi <<= 1
}

// evaluateSprites scans primary OAM for up to 8 sprites visible on the
// scanline that follows the current one (spec §4.D: sprite evaluation at
// cycle 257 of scanline N selects sprites for scanline N+1). The 9th match
// sets the overflow flag instead of being recorded (the real hardware
// diagonal read bug that produces false positives/negatives is not
// modeled, matching spec.md's explicit simplification).
func (p *PPU) evaluateSprites() {
	p.secondaryCount = 0
	p.secondarySprite0 = false

	if !p.renderingEnabled() {
		return
	}

	height := uint16(8)
	if p.ctrl&ctrlSpriteSize != 0 {
		height = 16
	}

	targetLine := uint16(p.scanline + 1)
	for i := uint8(0); i < 64; i++ {
		base := uint16(i) * 4
		y := uint16(p.oam[base])
		diff := targetLine - y
		if diff >= height {
			continue
		}
		if p.secondaryCount >= 8 {
			p.status |= statusSpriteOverflow
			break
		}
		p.secondary[p.secondaryCount] = secondaryOAMEntry{
			y:     p.oam[base],
			tile:  p.oam[base+1],
			attr:  p.oam[base+2],
			x:     p.oam[base+3],
			index: i,
		}
		if i == 0 {
			p.secondarySprite0 = true
		}
		p.secondaryCount++
	}
}

// fetchSpritePatterns fills pattern shifters for each sprite selected by
// evaluateSprites, at dot 340 as spec.md §4.D directs, so they're armed
// before the scanline they apply to begins rendering.
func (p *PPU) fetchSpritePatterns() {
	height := uint16(8)
	if p.ctrl&ctrlSpriteSize != 0 {
		height = 16
	}
	targetLine := uint16(p.scanline + 1)

	p.spriteCount = p.secondaryCount
	p.sprite0Present = p.secondarySprite0

	for i := 0; i < p.secondaryCount; i++ {
		e := p.secondary[i]
		row := targetLine - uint16(e.y)
		if e.attr&0x80 != 0 { // vertical flip
			row = height - 1 - row
		}

		var addr uint16
		if height == 16 {
			tile := uint16(e.tile &^ 0x01)
			table := uint16(e.tile&0x01) << 12
			if row >= 8 {
				tile += 1
				row -= 8
			}
			addr = table | (tile << 4) | row
		} else {
			table := uint16(0)
			if p.ctrl&ctrlSpritePattern != 0 {
				table = 0x1000
			}
			addr = table | (uint16(e.tile) << 4) | row
		}

		lo := p.readVRAM(addr)
		hi := p.readVRAM(addr + 8)
		if e.attr&0x40 != 0 { // horizontal flip
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.sprites[i] = spriteSlot{
			patternLo:  lo,
			patternHi:  hi,
			xCounter:   e.x,
			attributes: e.attr,
			isSprite0:  i == 0 && p.sprite0Present,
		}
	}
}

func reverseBits(b uint8) uint8 {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// spritePixel returns the highest-priority active sprite's (pattern,
// palette, priority, isSprite0) for the current dot, then advances every
// active sprite's shift state: counters above zero tick down, sprites at
// zero shift their pattern bytes out one bit per dot, matching real
// hardware's per-dot sprite x-counter behavior (spec.md §4.D).
func (p *PPU) spritePixel() (pattern, palette uint8, priority bool, isSprite0 bool, found bool) {
	for i := 0; i < p.spriteCount; i++ {
		s := &p.sprites[i]
		if s.xCounter > 0 {
			s.xCounter--
			continue
		}
		if found {
			// A higher-priority (lower-index) sprite already produced a
			// pixel this dot; still must shift this one out below.
			s.patternLo <<= 1
			s.patternHi <<= 1
			continue
		}
		hi := (s.patternHi & 0x80) >> 6
		lo := (s.patternLo & 0x80) >> 7
		val := hi | lo
		s.patternLo <<= 1
		s.patternHi <<= 1
		if val != 0 {
			pattern = val
			palette = s.attributes & 0x03
			priority = s.attributes&0x20 == 0
			isSprite0 = s.isSprite0
			found = true
		}
	}
	return
}

// renderPixel composes the current dot's background and sprite pixels and
// writes the resulting palette index to the frame buffer.
func (p *PPU) renderPixel() {
	x := p.cycle - 1
	y := p.scanline

	var bgPixel, bgPalette uint8
	if p.mask&maskShowBackground != 0 && (x >= 8 || p.mask&maskShowBGLeft != 0) {
		mux := uint16(0x8000) >> p.fineX
		p0 := uint8(0)
		if p.bgPatternLo&mux != 0 {
			p0 = 1
		}
		p1 := uint8(0)
		if p.bgPatternHi&mux != 0 {
			p1 = 1
		}
		bgPixel = (p1 << 1) | p0

		a0 := uint8(0)
		if p.bgAttribLo&mux != 0 {
			a0 = 1
		}
		a1 := uint8(0)
		if p.bgAttribHi&mux != 0 {
			a1 = 1
		}
		bgPalette = (a1 << 1) | a0
	}

	var spPixel, spPalette uint8
	var spPriority, spIsSprite0, spFound bool
	if p.mask&maskShowSprites != 0 {
		// Always run: the shift registers advance every dot regardless of
		// the left-column mask, which only hides the resulting pixel.
		spPixel, spPalette, spPriority, spIsSprite0, spFound = p.spritePixel()
		if x < 8 && p.mask&maskShowSpriteLeft == 0 {
			spPixel, spFound = 0, false
		}
	}

	var finalPixel, finalPaletteIndex uint8
	switch {
	case bgPixel == 0 && (!spFound || spPixel == 0):
		finalPixel, finalPaletteIndex = 0, 0
	case bgPixel == 0:
		finalPixel, finalPaletteIndex = spPixel, spPalette+4
	case !spFound || spPixel == 0:
		finalPixel, finalPaletteIndex = bgPixel, bgPalette
	default:
		if spPriority {
			finalPixel, finalPaletteIndex = spPixel, spPalette+4
		} else {
			finalPixel, finalPaletteIndex = bgPixel, bgPalette
		}
		if spIsSprite0 && p.sprite0Present && x != 255 &&
			p.mask&maskShowBackground != 0 && p.mask&maskShowSprites != 0 {
			if x >= 8 || (p.mask&maskShowBGLeft != 0 && p.mask&maskShowSpriteLeft != 0) {
				p.status |= statusSprite0Hit
			}
		}
	}

	addr := 0x3F00 + uint16(finalPaletteIndex)<<2 + uint16(finalPixel)
	if finalPixel == 0 {
		addr = 0x3F00
	}
	p.frameBuffer[y*screenWidth+x] = p.readVRAM(addr) & 0x3F
}
