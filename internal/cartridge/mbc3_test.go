package cartridge

import "testing"

func setupMBC3Header(rom []byte, cartType, ramSize, romSize byte) {
	setupMinimalHeader(rom, cartType, ramSize)
	rom[0x0148] = romSize

	checksum := byte(0)
	for addr := 0x0134; addr <= 0x014C; addr++ {
		checksum = checksum - rom[addr] - 1
	}
	rom[0x014D] = checksum
}

func TestMBC3ROMBanking(t *testing.T) {
	// 256 KiB ROM (16 banks)
	rom := make([]byte, 256*1024)
	rom[0x0000] = 0x00 // Bank 0
	rom[0x4000] = 0x01 // Bank 1
	rom[0x04000+0x4000] = 0x02 // Bank 2 (offset 2*0x4000)

	setupMBC3Header(rom, byte(TypeMBC3), 0x00, 0x03) // MBC3, no RAM, 256 KiB

	header, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}
	cart, err := newMBC3(rom, header)
	if err != nil {
		t.Fatalf("newMBC3() error = %v", err)
	}

	if got := cart.Read(0x4000); got != 0x01 {
		t.Errorf("Read(0x4000) default bank 1 = 0x%02X, want 0x01", got)
	}

	cart.Write(0x2000, 0x02)
	if got := cart.Read(0x4000); got != 0x02 {
		t.Errorf("Read(0x4000) after switching to bank 2 = 0x%02X, want 0x02", got)
	}

	// Bank 0 never windows in MBC3; 0x0000-0x3FFF is always the first bank.
	if got := cart.Read(0x0000); got != 0x00 {
		t.Errorf("Read(0x0000) = 0x%02X, want 0x00 (fixed bank)", got)
	}
}

func TestMBC3ROMBankZeroSubstitution(t *testing.T) {
	rom := make([]byte, 128*1024)
	rom[0x4000] = 0x01 // Bank 1

	setupMBC3Header(rom, byte(TypeMBC3), 0x00, 0x02) // MBC3, no RAM, 128 KiB

	header, _ := ParseHeader(rom)
	cart, err := newMBC3(rom, header)
	if err != nil {
		t.Fatalf("newMBC3() error = %v", err)
	}

	cart.Write(0x2000, 0x00)
	if got := cart.Read(0x4000); got != 0x01 {
		t.Errorf("Writing 0x00 to ROM bank register = 0x%02X, want bank 1 (0x01)", got)
	}
}

func TestMBC3ROMBankFull7Bits(t *testing.T) {
	// 2 MiB ROM (128 banks) to exercise bit 6 of the bank register,
	// which MBC1 would have folded into the RAM-bank register.
	rom := make([]byte, 2*1024*1024)
	rom[127*0x4000] = 0x7F // Bank 127 marker

	setupMBC3Header(rom, byte(TypeMBC3), 0x00, 0x06) // MBC3, no RAM, 2 MiB

	header, _ := ParseHeader(rom)
	cart, err := newMBC3(rom, header)
	if err != nil {
		t.Fatalf("newMBC3() error = %v", err)
	}

	cart.Write(0x2000, 0x7F)
	if got := cart.Read(0x4000); got != 0x7F {
		t.Errorf("Read(0x4000) bank 127 = 0x%02X, want 0x7F", got)
	}
}

func TestMBC3RAMBanking(t *testing.T) {
	rom := make([]byte, 0x8000)
	setupMinimalHeader(rom, byte(TypeMBC3RAMBattery), 0x03) // 32 KiB RAM, 4 banks

	header, _ := ParseHeader(rom)
	cart, err := newMBC3(rom, header)
	if err != nil {
		t.Fatalf("newMBC3() error = %v", err)
	}

	cart.Write(0x0000, 0x0A) // Enable RAM

	cart.Write(0x4000, 0x00)
	cart.Write(0xA000, 0x11)
	cart.Write(0x4000, 0x01)
	cart.Write(0xA000, 0x22)
	cart.Write(0x4000, 0x03)
	cart.Write(0xA000, 0x33)

	cart.Write(0x4000, 0x00)
	if got := cart.Read(0xA000); got != 0x11 {
		t.Errorf("RAM bank 0 = 0x%02X, want 0x11", got)
	}
	cart.Write(0x4000, 0x01)
	if got := cart.Read(0xA000); got != 0x22 {
		t.Errorf("RAM bank 1 = 0x%02X, want 0x22", got)
	}
	cart.Write(0x4000, 0x03)
	if got := cart.Read(0xA000); got != 0x33 {
		t.Errorf("RAM bank 3 = 0x%02X, want 0x33", got)
	}
}

func TestMBC3RTCRegisterSelectReadsFF(t *testing.T) {
	rom := make([]byte, 0x8000)
	setupMinimalHeader(rom, byte(TypeMBC3RAMBattery), 0x02)

	header, _ := ParseHeader(rom)
	cart, err := newMBC3(rom, header)
	if err != nil {
		t.Fatalf("newMBC3() error = %v", err)
	}

	cart.Write(0x0000, 0x0A) // Enable RAM/RTC
	cart.Write(0x4000, 0x08) // Select RTC seconds register

	if got := cart.Read(0xA000); got != 0xFF {
		t.Errorf("Read from RTC register = 0x%02X, want 0xFF (unimplemented)", got)
	}

	// Writes to RTC registers are accepted but have no observable effect.
	cart.Write(0xA000, 0x2A)
	if got := cart.Read(0xA000); got != 0xFF {
		t.Errorf("Read from RTC register after write = 0x%02X, want 0xFF", got)
	}
}

func TestMBC3LatchClockDataIgnored(t *testing.T) {
	rom := make([]byte, 0x8000)
	setupMinimalHeader(rom, byte(TypeMBC3), 0x00)

	header, _ := ParseHeader(rom)
	cart, err := newMBC3(rom, header)
	if err != nil {
		t.Fatalf("newMBC3() error = %v", err)
	}

	// Should not panic or alter banking state.
	cart.Write(0x6000, 0x00)
	cart.Write(0x6000, 0x01)
	if cart.romBank != 1 {
		t.Errorf("latch writes should not touch romBank, got %d", cart.romBank)
	}
}

func TestMBC3HasBattery(t *testing.T) {
	tests := []struct {
		name     string
		cartType CartridgeType
		want     bool
	}{
		{"MBC3", TypeMBC3, false},
		{"MBC3+RAM", TypeMBC3RAM, false},
		{"MBC3+RAM+Battery", TypeMBC3RAMBattery, true},
		{"MBC3+Timer+Battery", TypeMBC3TimerBattery, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rom := make([]byte, 0x8000)
			setupMinimalHeader(rom, byte(tt.cartType), 0x00)

			header, _ := ParseHeader(rom)
			cart, err := newMBC3(rom, header)
			if err != nil {
				t.Fatalf("newMBC3() error = %v", err)
			}

			if got := cart.HasBattery(); got != tt.want {
				t.Errorf("HasBattery() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMBC3NoRAM(t *testing.T) {
	rom := make([]byte, 0x8000)
	setupMinimalHeader(rom, byte(TypeMBC3), 0x00)

	header, _ := ParseHeader(rom)
	cart, err := newMBC3(rom, header)
	if err != nil {
		t.Fatalf("newMBC3() error = %v", err)
	}

	if cart.ram != nil {
		t.Error("MBC3 without RAM should have nil ram")
	}
	if got := cart.GetRAM(); got != nil {
		t.Error("GetRAM() should return nil when no RAM")
	}
	if got := cart.Read(0xA000); got != 0xFF {
		t.Errorf("Read from RAM area with no RAM = 0x%02X, want 0xFF", got)
	}
}
