// Package input implements Game Boy joypad input handling.
package input

// Button names accepted by PressButton/ReleaseButton.
const (
	ButtonA      = "A"
	ButtonB      = "B"
	ButtonStart  = "Start"
	ButtonSelect = "Select"
	ButtonUp     = "Up"
	ButtonDown   = "Down"
	ButtonLeft   = "Left"
	ButtonRight  = "Right"
)

// Joypad represents the Game Boy joypad state and P1/JOYP register.
type Joypad struct {
	// Selection bits (written by CPU)
	selectAction    bool // P15 (0=select action buttons)
	selectDirection bool // P14 (0=select direction buttons)

	// Button states (true = pressed)
	buttonA      bool
	buttonB      bool
	buttonStart  bool
	buttonSelect bool
	buttonUp     bool
	buttonDown   bool
	buttonLeft   bool
	buttonRight  bool

	// lastMatrixBits is the low nibble (bits 0-3) of the last computed
	// P1 read-back, used to detect the 1->0 transition that fires the
	// joypad interrupt. It depends on both button state and selection,
	// since an unselected half of the matrix always reads back 1.
	lastMatrixBits uint8

	// Interrupt callback
	requestInterrupt func(uint8)
}

// New creates a new Joypad instance.
func New(requestInterrupt func(uint8)) *Joypad {
	return &Joypad{
		selectAction:     true, // Not selected (1)
		selectDirection:  true, // Not selected (1)
		lastMatrixBits:   0x0F,
		requestInterrupt: requestInterrupt,
	}
}

// matrixBits computes the low nibble of the P1 read-back for the
// current selection and button state (1=released, 0=pressed).
func (j *Joypad) matrixBits() uint8 {
	bits := uint8(0x0F)

	if !j.selectAction {
		if j.buttonStart {
			bits &^= 0x08
		}
		if j.buttonSelect {
			bits &^= 0x04
		}
		if j.buttonB {
			bits &^= 0x02
		}
		if j.buttonA {
			bits &^= 0x01
		}
	}

	if !j.selectDirection {
		if j.buttonDown {
			bits &^= 0x08
		}
		if j.buttonUp {
			bits &^= 0x04
		}
		if j.buttonLeft {
			bits &^= 0x02
		}
		if j.buttonRight {
			bits &^= 0x01
		}
	}

	return bits
}

// refreshInterrupt recomputes the matrix read-back and requests the
// joypad interrupt if any bit made a 1->0 transition since the last
// time the matrix was observed. This matches hardware: the interrupt
// fires on a falling edge of a matrix *output* bit, not on the raw
// button press, so it depends on which half of the matrix is selected.
func (j *Joypad) refreshInterrupt() {
	bits := j.matrixBits()
	fallingEdge := j.lastMatrixBits &^ bits // bits that were 1 and are now 0
	if fallingEdge != 0 && j.requestInterrupt != nil {
		j.requestInterrupt(4)
	}
	j.lastMatrixBits = bits
}

// Read returns the P1/JOYP register value (0xFF00).
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) // Upper 2 bits always 1

	if j.selectAction {
		result |= 0x20 // P15
	}
	if j.selectDirection {
		result |= 0x10 // P14
	}

	result |= j.matrixBits()
	return result
}

// Write updates the P1/JOYP register (only bits 4-5 are writable).
// Changing the selection can itself expose an already-pressed button
// as a new falling edge, so it re-runs the interrupt check too.
func (j *Joypad) Write(value uint8) {
	j.selectAction = (value & 0x20) != 0
	j.selectDirection = (value & 0x10) != 0
	j.refreshInterrupt()
}

// PressButton marks a button as pressed.
func (j *Joypad) PressButton(button string) {
	switch button {
	case ButtonA:
		j.buttonA = true
	case ButtonB:
		j.buttonB = true
	case ButtonStart:
		j.buttonStart = true
	case ButtonSelect:
		j.buttonSelect = true
	case ButtonUp:
		if !j.buttonDown { // Block opposite directions
			j.buttonUp = true
		}
	case ButtonDown:
		if !j.buttonUp {
			j.buttonDown = true
		}
	case ButtonLeft:
		if !j.buttonRight {
			j.buttonLeft = true
		}
	case ButtonRight:
		if !j.buttonLeft {
			j.buttonRight = true
		}
	}
	j.refreshInterrupt()
}

// ReleaseButton marks a button as released.
func (j *Joypad) ReleaseButton(button string) {
	switch button {
	case ButtonA:
		j.buttonA = false
	case ButtonB:
		j.buttonB = false
	case ButtonStart:
		j.buttonStart = false
	case ButtonSelect:
		j.buttonSelect = false
	case ButtonUp:
		j.buttonUp = false
	case ButtonDown:
		j.buttonDown = false
	case ButtonLeft:
		j.buttonLeft = false
	case ButtonRight:
		j.buttonRight = false
	}
	j.refreshInterrupt()
}

// Reset restores the joypad to its power-on state: nothing pressed,
// both selection lines unselected.
func (j *Joypad) Reset() {
	j.selectAction = true
	j.selectDirection = true
	j.buttonA = false
	j.buttonB = false
	j.buttonStart = false
	j.buttonSelect = false
	j.buttonUp = false
	j.buttonDown = false
	j.buttonLeft = false
	j.buttonRight = false
	j.lastMatrixBits = 0x0F
}
