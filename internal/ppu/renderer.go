package ppu

import "sort"

// renderScanline renders the current scanline to the framebuffer.
// This is called during mode 3 (drawing) for each scanline.
func (p *PPU) renderScanline() {
	// Only render if LCD is enabled
	if p.lcdc&LCDCLCDEnable == 0 {
		return
	}

	windowDrawn := false

	// Render background if enabled
	if p.lcdc&LCDCBGWindowEnable != 0 {
		p.renderBackground()
	} else {
		// If BG is disabled, fill with white (color 0)
		p.clearScanline()
	}

	// Render window if enabled
	if p.lcdc&LCDCWindowEnable != 0 {
		windowDrawn = p.renderWindow()
	}

	// The internal window line counter only advances on scanlines where
	// the window actually contributed a pixel; it is independent of LY
	// so scrolling WY/WX mid-frame cannot desync window tile rows.
	if windowDrawn {
		p.windowLine++
	}

	// Render sprites if enabled
	if p.lcdc&LCDCOBJEnable != 0 {
		p.renderSprites()
	}
}

// clearScanline fills the current scanline with white (color index 0).
func (p *PPU) clearScanline() {
	offset := int(p.ly) * ScreenWidth
	shade := p.applyPalette(0, p.bgp)
	rgb := dmgPalette[shade]
	for x := 0; x < ScreenWidth; x++ {
		p.colorIndex[offset+x] = 0
		p.setPixel(offset+x, rgb)
	}
}

// renderBackground renders the background layer for the current scanline.
func (p *PPU) renderBackground() {
	// Determine which tile map to use
	tileMapBase := uint16(0x1800) // 0x9800 - 0x8000
	if p.lcdc&LCDCBGTileMap != 0 {
		tileMapBase = 0x1C00 // 0x9C00 - 0x8000
	}

	// Determine tile data addressing mode
	useSigned := p.lcdc&LCDCBGTileData == 0
	tileDataBase := uint16(0x0000)
	if useSigned {
		tileDataBase = 0x0800 // folded into getTileDataAddr's 0x9000 base
	}

	// Calculate Y position in background map (with scrolling)
	y := uint16(p.ly) + uint16(p.scy)
	tileRow := (y / 8) % 32 // 32 tiles per row in tile map

	// Render each pixel of the scanline
	for x := uint16(0); x < ScreenWidth; x++ {
		// Calculate X position in background map (with scrolling)
		scrolledX := x + uint16(p.scx)
		tileCol := (scrolledX / 8) % 32 // 32 tiles per column

		// Get tile index from tile map
		tileMapAddr := tileMapBase + (tileRow * 32) + tileCol
		tileIndex := p.vram[tileMapAddr]

		// Calculate tile data address
		tileAddr := p.getTileDataAddr(tileIndex, useSigned, tileDataBase)

		// Get pixel within tile
		tileY := y % 8
		tileX := scrolledX % 8

		// Get pixel color index
		colorIndex := p.getTilePixel(tileAddr, tileX, tileY)

		offset := int(p.ly)*ScreenWidth + int(x)
		p.colorIndex[offset] = colorIndex
		p.setPixel(offset, dmgPalette[p.applyPalette(colorIndex, p.bgp)])
	}
}

// renderWindow renders the window layer for the current scanline, using
// the PPU's internal window line counter rather than LY-WY. It reports
// whether it drew any pixel on this scanline.
func (p *PPU) renderWindow() bool {
	// Window must be visible on this scanline
	if p.ly < p.wy {
		return false
	}

	// Window X position is offset by 7; WX < 7 still starts the window
	// at screen column 0, just with the corresponding tile columns
	// clipped off the left edge.
	windowXOffset := int16(p.wx) - 7
	if windowXOffset >= ScreenWidth {
		return false
	}

	// Determine which tile map to use for window
	tileMapBase := uint16(0x1800) // 0x9800 - 0x8000
	if p.lcdc&LCDCWindowTileMap != 0 {
		tileMapBase = 0x1C00 // 0x9C00 - 0x8000
	}

	// Determine tile data addressing mode
	useSigned := p.lcdc&LCDCBGTileData == 0
	tileDataBase := uint16(0x0000)
	if useSigned {
		tileDataBase = 0x0800 // folded into getTileDataAddr's 0x9000 base
	}

	windowY := uint16(p.windowLine)
	tileRow := (windowY / 8) % 32

	drew := false

	// Render each pixel of the window on this scanline
	for x := uint16(0); x < ScreenWidth; x++ {
		// Check if this pixel is in the window
		if int16(x) < windowXOffset {
			continue
		}

		windowX := uint16(int16(x) - windowXOffset) //nolint:gosec // Intentional conversion
		tileCol := (windowX / 8) % 32

		// Get tile index from window tile map
		tileMapAddr := tileMapBase + (tileRow * 32) + tileCol
		tileIndex := p.vram[tileMapAddr]

		// Calculate tile data address
		tileAddr := p.getTileDataAddr(tileIndex, useSigned, tileDataBase)

		// Get pixel within tile
		tileY := windowY % 8
		tileX := windowX % 8

		// Get pixel color index
		colorIndex := p.getTilePixel(tileAddr, tileX, tileY)

		offset := int(p.ly)*ScreenWidth + int(x)
		p.colorIndex[offset] = colorIndex
		p.setPixel(offset, dmgPalette[p.applyPalette(colorIndex, p.bgp)])
		drew = true
	}

	return drew
}

// renderSprites renders sprites (objects) for the current scanline.
//
//nolint:gocognit // Sprite rendering is inherently complex
func (p *PPU) renderSprites() {
	spriteHeight := uint16(8)
	if p.lcdc&LCDCOBJSize != 0 {
		spriteHeight = 16
	}

	// Reset sprite buffer (reuse allocation to reduce GC pressure)
	p.spriteBuffer = p.spriteBuffer[:0]

	// Scan OAM for sprites on this scanline
	for i := 0; i < 40; i++ {
		oamAddr := i * 4

		y := int16(p.oam[oamAddr]) - 16
		x := int16(p.oam[oamAddr+1]) - 8
		tileIndex := p.oam[oamAddr+2]
		attrs := p.oam[oamAddr+3]

		// Check if sprite is on this scanline
		scanline := int16(p.ly)
		if scanline >= y && scanline < y+int16(spriteHeight) { //nolint:gosec // Intentional conversion
			p.spriteBuffer = append(p.spriteBuffer, sprite{
				x:         x,
				y:         y,
				tileIndex: tileIndex,
				attrs:     attrs,
				oamIndex:  i,
			})

			// Max 10 sprites per scanline
			if len(p.spriteBuffer) >= 10 {
				break
			}
		}
	}

	// DMG sprite priority: smaller X wins; ties broken by OAM index.
	// Sort ascending by that priority, then paint in reverse so the
	// highest-priority sprite is drawn last (on top).
	sort.SliceStable(p.spriteBuffer, func(i, j int) bool {
		a, b := p.spriteBuffer[i], p.spriteBuffer[j]
		if a.x != b.x {
			return a.x < b.x
		}
		return a.oamIndex < b.oamIndex
	})

	for i := len(p.spriteBuffer) - 1; i >= 0; i-- {
		spr := p.spriteBuffer[i]

		// Calculate which line of the sprite to render
		spriteLine := uint16(int16(p.ly) - spr.y) //nolint:gosec // Intentional conversion

		// Apply Y flip
		if spr.attrs&SpriteAttrYFlip != 0 {
			spriteLine = spriteHeight - 1 - spriteLine
		}

		// For 8x16 sprites, use two tiles
		tileIndex := uint16(spr.tileIndex)
		if spriteHeight == 16 {
			// In 8x16 mode, bit 0 is ignored
			tileIndex &= 0xFE
			// Use second tile for bottom half
			if spriteLine >= 8 {
				tileIndex++
				spriteLine -= 8
			}
		}

		// Get tile data address (sprites always use 0x8000 addressing)
		tileAddr := tileIndex * 16

		// Render each pixel of the sprite
		for x := uint16(0); x < 8; x++ {
			pixelX := spr.x + int16(x)

			// Skip pixels outside screen
			if pixelX < 0 || pixelX >= ScreenWidth {
				continue
			}

			// Apply X flip
			tileX := x
			if spr.attrs&SpriteAttrXFlip != 0 {
				tileX = 7 - x
			}

			// Get pixel color index
			colorIndex := p.getTilePixel(tileAddr, tileX, spriteLine)

			// Color 0 is transparent for sprites
			if colorIndex == 0 {
				continue
			}

			// Check sprite priority against the BG/window's pre-palette
			// color index, not its post-palette shade: BGP can remap
			// index 0 to a dark shade without making it "non-zero".
			offset := int(p.ly)*ScreenWidth + int(pixelX)
			bgIndex := p.colorIndex[offset]
			if spr.attrs&SpriteAttrPriority != 0 && bgIndex != 0 {
				// Sprite is behind BG colors 1-3
				continue
			}

			// Apply sprite palette
			palette := p.obp0
			if spr.attrs&SpriteAttrPalette != 0 {
				palette = p.obp1
			}
			p.setPixel(offset, dmgPalette[p.applyPalette(colorIndex, palette)])
		}
	}
}

// setPixel writes an RGBA pixel into the presentation buffer.
func (p *PPU) setPixel(pixelOffset int, rgb [4]uint8) {
	o := pixelOffset * 4
	p.rgba[o] = rgb[0]
	p.rgba[o+1] = rgb[1]
	p.rgba[o+2] = rgb[2]
	p.rgba[o+3] = rgb[3]
}

// getTileDataAddr calculates the address of tile data.
func (p *PPU) getTileDataAddr(tileIndex uint8, useSigned bool, base uint16) uint16 {
	if useSigned {
		// Signed addressing: tile 0 at 0x9000 (0x1000 in VRAM, i.e. base + 0x0800)
		signedIndex := int16(int8(tileIndex))                              //nolint:gosec // Intentional signed conversion
		return uint16(int32(base) + int32(0x0800) + int32(signedIndex)*16) //nolint:gosec // Intentional conversion
	}
	// Unsigned addressing: base at 0x8000 (0x0000 in VRAM)
	return base + uint16(tileIndex)*16
}

// getTilePixel gets a pixel from a tile.
// Tiles are 8x8 pixels, 2 bits per pixel, stored as 16 bytes.
func (p *PPU) getTilePixel(tileAddr, x, y uint16) uint8 {
	// Each row is 2 bytes
	lineAddr := tileAddr + (y * 2)

	// Get the two bytes for this line
	byte1 := p.vram[lineAddr]
	byte2 := p.vram[lineAddr+1]

	// Extract the bit for this pixel (bit 7 is pixel 0, bit 0 is pixel 7)
	bitPos := 7 - x
	bit1 := (byte1 >> bitPos) & 1
	bit2 := (byte2 >> bitPos) & 1

	// Combine to get color index (0-3)
	return (bit2 << 1) | bit1
}

// applyPalette applies a palette to convert a color index (0-3) to a shade (0-3).
func (p *PPU) applyPalette(colorIndex, palette uint8) uint8 {
	// Extract 2-bit shade for this color index
	shift := colorIndex * 2
	return (palette >> shift) & 0x03
}
