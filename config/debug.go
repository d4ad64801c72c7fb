package config

import "os"

// Debug sentinel files.  Touching one under /tmp turns the matching
// verbose stream on at runtime; removing it turns the stream off.
const (
	DebugFile          = "/tmp/debug"
	DebugHeatersFile   = "/tmp/debugHeaters"
	DebugCSSFile       = "/tmp/debugCSS"
	DebugCSVFile       = "/tmp/debugCSV"
	HeaterCSVTrigger   = "/tmp/writeHeaterCSVFile"
	HeaterCSVTempFile  = "/tmp/heaterData.csv"
	HeaterCSVDirectory = "/var/log/HennyPenny"
	MaxHeaterDataFiles = 5
)

// DebugEnabled reports whether the named sentinel file exists.  Callers
// check once per tick, not once per message.
func DebugEnabled(sentinel string) bool {
	_, err := os.Stat(sentinel)
	return err == nil
}
