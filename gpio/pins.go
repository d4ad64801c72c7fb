package gpio

// Sysfs value paths from the controller board schematic.  Heater N is
// counted from the top of the cabinet: the top slot's upper element is
// heater 1, its lower element heater 2, and so on down the cabinet.
var (
	// HeaterPaths is indexed by heater index 0-11.
	HeaterPaths = [12]string{
		"/sys/class/gpio/gpio47/value", // P8_15
		"/sys/class/gpio/gpio27/value", // P8_17
		"/sys/class/gpio/gpio61/value", // P8_26
		"/sys/class/gpio/gpio88/value", // P8_28
		"/sys/class/gpio/gpio89/value", // P8_30
		"/sys/class/gpio/gpio81/value", // P8_34
		"/sys/class/gpio/gpio80/value", // P8_36
		"/sys/class/gpio/gpio79/value", // P8_38
		"/sys/class/gpio/gpio77/value", // P8_40
		"/sys/class/gpio/gpio75/value", // P8_42
		"/sys/class/gpio/gpio70/value", // P8_45
		"/sys/class/gpio/gpio71/value", // P8_46
	}

	// Relay220Path switches the 220 VAC heater supply relay.
	Relay220Path = "/sys/class/gpio/gpio22/value" // P8_19

	// FanOnPaths and FanTachPaths are indexed by fan 0-1.
	FanOnPaths   = [2]string{"/sys/class/gpio/gpio72/value", "/sys/class/gpio/gpio74/value"}
	FanTachPaths = [2]string{"/sys/class/gpio/gpio66/value", "/sys/class/gpio/gpio69/value"}

	// WarnOutPath is the power-meter warn-out pulse input; a rising
	// edge means line power is about to fail.
	WarnOutPath = "/sys/class/gpio/gpio44/value" // P8_12

	// BoardIDPaths carry the hardware revision straps, ID0 first.
	BoardIDPaths = [3]string{
		"/sys/class/gpio/gpio9/value",
		"/sys/class/gpio/gpio8/value",
		"/sys/class/gpio/gpio10/value",
	}
)

// BoardRevision decodes the three ID straps into a revision number.
func BoardRevision(id0, id1, id2 bool) int {
	rev := 0
	if id0 {
		rev |= 1
	}
	if id1 {
		rev |= 2
	}
	if id2 {
		rev |= 4
	}
	return rev
}
