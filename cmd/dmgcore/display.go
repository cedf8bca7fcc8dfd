package main

import (
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/nrickert/dmgcore/internal/emulator"
	"github.com/nrickert/dmgcore/internal/ppu"
)

// Display implements the Ebiten game interface for the Game Boy emulator.
type Display struct {
	emulator *emulator.Emulator
	screen   *ebiten.Image
}

// NewDisplay creates a new display for the emulator.
func NewDisplay(emu *emulator.Emulator) *Display {
	return &Display{
		emulator: emu,
		screen:   ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight),
	}
}

// Update updates the game logic (runs one frame worth of cycles).
// This is called 60 times per second by Ebiten.
func (d *Display) Update() error {
	d.handleInput()

	if err := d.emulator.RunFrame(); err != nil {
		slog.Error("stopping emulation", "error", err)
		return err
	}

	return nil
}

// handleInput processes keyboard input and updates joypad state.
func (d *Display) handleInput() {
	// Map keyboard keys to Game Boy buttons
	keyMap := map[ebiten.Key]string{
		ebiten.KeyArrowUp:    "Up",
		ebiten.KeyArrowDown:  "Down",
		ebiten.KeyArrowLeft:  "Left",
		ebiten.KeyArrowRight: "Right",
		ebiten.KeyZ:          "A",
		ebiten.KeyX:          "B",
		ebiten.KeyEnter:      "Start",
		ebiten.KeyShift:      "Select",
	}

	// Check each key and update joypad state
	for key, button := range keyMap {
		if ebiten.IsKeyPressed(key) {
			d.emulator.PressButton(button)
		} else {
			d.emulator.ReleaseButton(button)
		}
	}
}

// Draw draws the game screen.
// This is called after Update.
func (d *Display) Draw(screen *ebiten.Image) {
	// The PPU already maintains an RGBA presentation buffer, so drawing
	// is a single bulk pixel upload with no per-pixel palette lookup here.
	framebuffer := d.emulator.Framebuffer()
	d.screen.WritePixels(framebuffer[:])
	d.emulator.ClearFrameReady()

	screen.DrawImage(d.screen, nil)
}

// Layout returns the game screen size.
func (d *Display) Layout(_, _ int) (int, int) {
	return ppu.ScreenWidth, ppu.ScreenHeight
}
