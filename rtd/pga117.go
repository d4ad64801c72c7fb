package rtd

// PGA117 command words.  The two parts are daisy-chained on one SPI
// bus: the far device takes the daisy-chain selector variant, the near
// device the plain write, and both commands go out in a single four
// byte transaction.
const (
	pgaCmdWrite   = 0x2a00
	pgaDCSelector = 0x1000
	pgaDCCmdWrite = pgaDCSelector | pgaCmdWrite

	pgaChannelGND = 0 // VCAL/CH0, tied to ground in this design

	pgaGainShift    = 4
	pgaChannelShift = 0
)

// Gain selections; the PGA117 provides scope gains 1..200 in three
// bits.  Every thermistor channel in this cabinet runs at unity.
const (
	Gain1 = iota
	Gain2
	Gain5
	Gain10
	Gain20
	Gain50
	Gain100
	Gain200
)

// muxCommands formats the four-byte transaction that routes channel
// (mux input) at gain through the selected mux while parking the other
// mux on ground at unity gain.
func muxCommands(muxNumber, channel, gain int) [4]byte {
	park := uint16(pgaChannelGND<<pgaChannelShift | Gain1<<pgaGainShift)
	route := uint16(channel<<pgaChannelShift | gain<<pgaGainShift)

	var mux1Cmd, mux2Cmd uint16
	if muxNumber == 0 {
		mux1Cmd = pgaCmdWrite | route
		mux2Cmd = pgaDCCmdWrite | park
	} else {
		mux1Cmd = pgaCmdWrite | park
		mux2Cmd = pgaDCCmdWrite | route
	}
	// The far (daisy-chained) device's command shifts out first.
	return [4]byte{
		byte(mux2Cmd >> 8), byte(mux2Cmd),
		byte(mux1Cmd >> 8), byte(mux1Cmd),
	}
}
