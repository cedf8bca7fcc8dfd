package ppu

// SetModeForTesting sets the PPU mode directly for testing purposes,
// without advancing any dots.
func (p *PPU) SetModeForTesting(mode uint8) {
	p.mode = mode
	p.stat = (p.stat &^ STATModeMask) | (mode & STATModeMask)
}
