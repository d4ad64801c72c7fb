package eventlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RecentErrorsFilename is the rolling excerpt kept beside the daily
// logs.
const RecentErrorsFilename = "recent_errors.log"

// recentErrorLines is how many error lines the rolling file keeps.
const recentErrorLines = 25

const timeLayout = "2006-01-02 15:04:05"

// Consumer drains the queue into the daily CSV log.
type Consumer struct {
	Queue *Queue

	// Dir is the log directory (SD card when present, fallback
	// otherwise).
	Dir string

	// UnitType and Firmware are stamped into each file header.
	UnitType string
	Firmware string

	Log zerolog.Logger

	f       *os.File
	w       *csv.Writer
	fileDay string
}

// Run consumes records until a stop sentinel arrives or the context is
// cancelled.  It wakes once per second even when idle so cancellation is
// noticed; the daily file is chosen from each record's local date as the
// record is written.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.closeFile()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec, ok := c.Queue.Get(time.Now().Add(time.Second))
		if !ok {
			continue
		}
		if rec.Kind == KindStop {
			c.drain()
			return nil
		}
		c.write(rec)
	}
}

// drain writes everything already queued, then returns.
func (c *Consumer) drain() {
	for {
		rec, ok := c.Queue.Get(time.Now())
		if !ok {
			return
		}
		if rec.Kind == KindStop {
			continue
		}
		c.write(rec)
	}
}

func (c *Consumer) write(rec Record) {
	if err := c.rotate(rec.Time); err != nil {
		c.Log.Error().Err(err).Msg("open daily log")
		return
	}
	row := []string{rec.Time.Format(timeLayout), kindName(rec.Kind)}
	switch rec.Kind {
	case KindError:
		row = append(row, rec.Code, rec.Location, rec.Description)
		c.appendRecentError(rec)
	case KindCommand:
		row = append(row, strconv.Itoa(rec.GUI), rec.Command, rec.Response)
	case KindInternal:
		row = append(row, rec.Event, rec.Description, "")
	}
	if err := c.w.Write(row); err != nil {
		c.Log.Error().Err(err).Msg("write daily log row")
		return
	}
	c.w.Flush()
}

// rotate opens the file for the record's local date, closing the
// previous day's file when the date has changed.
func (c *Consumer) rotate(t time.Time) error {
	day := t.Format("20060102")
	if c.f != nil && day == c.fileDay {
		return nil
	}
	c.closeFile()
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.Dir, day+"Control.csv")
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	c.f = f
	c.w = csv.NewWriter(f)
	c.fileDay = day
	if fresh {
		c.writeHeader(t)
	}
	return nil
}

func (c *Consumer) writeHeader(t time.Time) {
	fmt.Fprintf(c.f, "# %s\n", t.Format(timeLayout))
	fmt.Fprintf(c.f, "# unit: %s\n", c.UnitType)
	fmt.Fprintf(c.f, "# firmware: %s\n", c.Firmware)
	for _, line := range c.recentErrors() {
		fmt.Fprintf(c.f, "# recent: %s\n", line)
	}
	c.w.Write([]string{"time", "kind", "field1", "field2", "field3"})
	c.w.Flush()
}

// appendRecentError keeps the rolling 25-line error excerpt current.
func (c *Consumer) appendRecentError(rec Record) {
	lines := c.recentErrors()
	lines = append(lines, fmt.Sprintf("%s %s %s %s",
		rec.Time.Format(timeLayout), rec.Code, rec.Location, rec.Description))
	if len(lines) > recentErrorLines {
		lines = lines[len(lines)-recentErrorLines:]
	}
	path := filepath.Join(c.Dir, RecentErrorsFilename)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		c.Log.Error().Err(err).Msg("write recent errors")
	}
}

func (c *Consumer) recentErrors() []string {
	b, err := os.ReadFile(filepath.Join(c.Dir, RecentErrorsFilename))
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > recentErrorLines {
		lines = lines[len(lines)-recentErrorLines:]
	}
	return lines
}

func (c *Consumer) closeFile() {
	if c.f == nil {
		return
	}
	c.w.Flush()
	c.f.Close()
	c.f = nil
	c.w = nil
}

func kindName(k Kind) string {
	switch k {
	case KindError:
		return "error"
	case KindCommand:
		return "command"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}
