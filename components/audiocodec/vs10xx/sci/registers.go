package sci

// SCI instructions.
const (
	opWrite = 0x02
	opRead  = 0x03
)

// SCI registers.
const (
	Mode       = 0x00 // mode control
	Status     = 0x01
	Bass       = 0x02 // built-in bass/treble control
	ClockF     = 0x03 // clock frequency and multiplier
	DecodeTime = 0x04
	AuData     = 0x05
	WRAM       = 0x06 // RAM read/write
	WRAMAddr   = 0x07 // base address for RAM read/write
	HDAT0      = 0x08
	HDAT1      = 0x09
	AIAddr     = 0x0A // start address of application code loaded through WRAM
	Vol        = 0x0B
	AICtrl0    = 0x0C
	AICtrl1    = 0x0D
	AICtrl2    = 0x0E
	AICtrl3    = 0x0F
)

// MODE register bits.
const (
	SMDiff     = 1 << 0
	SMLayer12  = 1 << 1
	SMReset    = 1 << 2
	SMCancel   = 1 << 3
	SMTests    = 1 << 5
	SMStream   = 1 << 6
	SMSDINew   = 1 << 11
	SMADPCM    = 1 << 12
	SMLine1    = 1 << 14
	SMClkRange = 1 << 15
)

// Well-known register values.
const (
	// ModeDefault is the mode word written after a soft reset: native SPI modes, LINE1 selected.
	ModeDefault = SMSDINew | SMLine1
	// ModeRecord switches the chip into ADPCM/Ogg recording from LINE1.
	ModeRecord = SMLine1 | SMADPCM | SMSDINew

	ClockFDecode = 0x6000
	ClockFRecord = 0xC000

	// ExpectedVersion is SS_VER (STATUS bits 4-7) of a VS1053.
	ExpectedVersion = 4
)

// Chip GPIO registers, reached through WRAM.
const (
	GPIODir  = 0xC017
	GPIORead = 0xC018
	GPIOSet  = 0xC019
)

// Chip GPIO lines used for audio routing.
const (
	InputSelectBit  = 5
	OutputSelectBit = 7
)

// Version extracts SS_VER from a STATUS word.
func Version(status uint16) int {
	return int(status>>4) & 0x0F
}
