package rtd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Channel indices.  0-11 are the heater thermistors, then the triac
// heatsink, then the ambient (board) sensor present from rev A02
// hardware on.
const (
	NumChannels   = 14
	HeatsinkIndex = 12
	AmbientIndex  = 13
)

// maxConsecutiveSecondsError is the fault debounce: an open or short
// must hold for this many consecutive scans before it latches.
const maxConsecutiveSecondsError = 3

// maxReadRetries bounds the re-read of a channel whose counts land
// outside the table.
const maxReadRetries = 4

// DefaultTableFile is the factory calibration data.
const DefaultTableFile = "/etc/hennyPennyTempData.txt"

// Channel is one thermistor input: its mux routing, its calibration
// table, and its fault state.
type Channel struct {
	Index     int
	RTDNumber int
	AINBus    int // ADC input the channel is wired to, 0 or 1
	MuxNumber int
	MuxInput  int
	Gain      int

	Table *Table

	RawCounts int
	TempF     int

	IsOpen         bool
	IsShorted      bool
	openOneShot    bool
	shortedOneShot bool
	SecondsOpen    int
	SecondsShorted int
}

// Label names the channel for log records.
func (c *Channel) Label() string {
	switch c.Index {
	case HeatsinkIndex:
		return "Heat sink"
	case AmbientIndex:
		return "Ambient"
	default:
		pos := "Bottom"
		if c.Index%2 == 0 {
			pos = "Top"
		}
		return fmt.Sprintf("Heater %d Slot %d %s", c.Index+1, c.Index/2+1, pos)
	}
}

// indirectionName returns the per-channel file that names the
// calibration table file.
func indirectionName(index int) string {
	switch index {
	case HeatsinkIndex:
		return "tempCalibrationTableFilename_RTD_HEATSINK.txt"
	case AmbientIndex:
		return "tempCalibrationTableFilename_RTD_BOARD.txt"
	default:
		return fmt.Sprintf("tempCalibrationTableFilename_RTD%d.txt", index+1)
	}
}

// NewChannels builds the channel set with the board's mux wiring.  The
// thermistor harness spreads the heaters across the two muxes in the
// order that eased the board layout, not numeric order.
func NewChannels(calibrationDir string, log zerolog.Logger) [NumChannels]*Channel {
	// index, ain/mux, mux input
	wiring := [NumChannels]struct{ ain, input int }{
		{0, 5}, {0, 4}, {0, 3}, {0, 2}, {0, 1}, {0, 7}, // heaters 1-6 on mux 0
		{1, 5}, {1, 4}, {1, 3}, {1, 2}, {1, 1}, {1, 7}, // heaters 7-12 on mux 1
		{1, 8}, // heatsink
		{1, 6}, // ambient
	}
	var out [NumChannels]*Channel
	for i := 0; i < NumChannels; i++ {
		out[i] = &Channel{
			Index:     i,
			RTDNumber: i + 1,
			AINBus:    wiring[i].ain,
			MuxNumber: wiring[i].ain,
			MuxInput:  wiring[i].input,
			Gain:      Gain1,
			TempF:     TempOutOfRange,
			Table:     loadChannelTable(calibrationDir, i, log),
		}
	}
	return out
}

// loadChannelTable resolves a channel's calibration: the indirection
// file names the table file; a missing or rejected file falls back to
// the shared factory file, then to the compiled-in curve.
func loadChannelTable(dir string, index int, log zerolog.Logger) *Table {
	paths := []string{}
	if name := readIndirection(filepath.Join(dir, indirectionName(index))); name != "" {
		paths = append(paths, name)
	}
	paths = append(paths, DefaultTableFile)
	for _, p := range paths {
		t, err := LoadTable(p)
		if err == nil {
			return t
		}
		if !os.IsNotExist(err) {
			log.Warn().Str("file", p).Err(err).Int("channel", index).Msg("calibration table rejected")
		}
	}
	return DefaultTable()
}

func readIndirection(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
