package heater

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/mattyIce83/frontier-uhc/config"
)

// heaterCSV streams one row per heater per tick to a scratch CSV while
// the trigger file exists.  When the scratch file grows past the cap it
// is moved into the log directory, keeping at most MaxHeaterDataFiles
// there.
type heaterCSV struct {
	f     *os.File
	bytes int64
}

const heaterCSVMaxBytes = 1 << 20

func (c *heaterCSV) maybeWrite(b *Bank, volts float64) {
	if !config.DebugEnabled(config.HeaterCSVTrigger) {
		c.close()
		return
	}
	if c.f == nil {
		f, err := os.OpenFile(config.HeaterCSVTempFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		c.f = f
		if st, err := f.Stat(); err == nil {
			c.bytes = st.Size()
		}
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	for _, h := range b.Snapshots() {
		n, _ := fmt.Fprintf(c.f, "%s,%0.1f,%d,%d,%d,%d,%t,%t\n",
			ts, volts, h.Index+1, h.RawCounts, h.CurrentTemp, h.Setpoint, h.On, h.Enabled)
		c.bytes += int64(n)
	}
	if c.bytes >= heaterCSVMaxBytes {
		c.rotate()
	}
}

// rotate moves the scratch file into the log directory and prunes the
// oldest captures beyond the retention count.
func (c *heaterCSV) rotate() {
	c.close()
	dir := config.HeaterCSVDirectory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "heaterData*.csv"))
	next := 0
	for _, m := range matches {
		base := filepath.Base(m)
		numStr := base[len("heaterData") : len(base)-len(".csv")]
		if n, err := strconv.Atoi(numStr); err == nil && n >= next {
			next = n + 1
		}
	}
	os.Rename(config.HeaterCSVTempFile, filepath.Join(dir, fmt.Sprintf("heaterData%d.csv", next)))
	matches, _ = filepath.Glob(filepath.Join(dir, "heaterData*.csv"))
	if len(matches) > config.MaxHeaterDataFiles {
		sort.Strings(matches)
		type aged struct {
			path string
			mod  time.Time
		}
		files := make([]aged, 0, len(matches))
		for _, m := range matches {
			st, err := os.Stat(m)
			if err != nil {
				continue
			}
			files = append(files, aged{path: m, mod: st.ModTime()})
		}
		sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
		for len(files) > config.MaxHeaterDataFiles {
			os.Remove(files[0].path)
			files = files[1:]
		}
	}
}

func (c *heaterCSV) close() {
	if c.f != nil {
		c.f.Close()
		c.f = nil
		c.bytes = 0
	}
}
