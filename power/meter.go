/*Package power talks to the line-power hardware: the energy-measurement
IC that reports RMS line voltage and current, and the warn-out input
that gives early warning of line sag.
*/
package power

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cenkalti/backoff"
)

// maxReads bounds how many times a register is read (the first read plus
// retries) before the meter is declared bad.
const maxReads = 5

// Meter register addresses.
const (
	regVrms = 0x2C
	regIrms = 0x2A
)

// Full-scale conversion factors for the sense network on this board.
const (
	vrmsFullScale = 275.0 // volts at full-scale counts
	irmsFullScale = 50.0  // amps at full-scale counts
	rmsCountsMax  = 0xFFFFFF
)

// ErrMeterSilent is returned when the meter answers zero for every
// retry.
var ErrMeterSilent = errors.New("power meter returned zero for all reads")

// Meter reads the energy-measurement IC over its SPI device.
type Meter struct {
	mu sync.Mutex
	f  *os.File
}

// OpenMeter opens the meter's spidev node.
func OpenMeter(path string) (*Meter, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open power meter %s: %w", path, err)
	}
	return &Meter{f: f}, nil
}

// Close releases the device.
func (m *Meter) Close() error { return m.f.Close() }

// ReadRMS returns line voltage and current.  Each register is retried
// until it answers non-zero, up to the retry budget; exhausting both
// budgets returns ErrMeterSilent.
func (m *Meter) ReadRMS() (volts, amps float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vCounts, vErr := m.readRegisterRetry(regVrms)
	iCounts, iErr := m.readRegisterRetry(regIrms)
	if vErr != nil && iErr != nil {
		return 0, 0, ErrMeterSilent
	}
	volts = float64(vCounts) / rmsCountsMax * vrmsFullScale
	amps = float64(iCounts) / rmsCountsMax * irmsFullScale
	return volts, amps, nil
}

// readRegisterRetry reads one register until it is non-zero or the
// budget runs out.
func (m *Meter) readRegisterRetry(reg byte) (uint32, error) {
	var counts uint32
	op := func() error {
		v, err := m.readRegister(reg)
		if err != nil {
			return err
		}
		if v == 0 {
			return ErrMeterSilent
		}
		counts = v
		return nil
	}
	err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxReads-1))
	if err != nil {
		return 0, err
	}
	return counts, nil
}

// readRegister issues one register read: command byte out, 24-bit
// big-endian value back.
func (m *Meter) readRegister(reg byte) (uint32, error) {
	if _, err := m.f.Write([]byte{reg}); err != nil {
		return 0, err
	}
	buf := make([]byte, 4)
	n, err := m.f.Read(buf[1:])
	if err != nil {
		return 0, err
	}
	if n != 3 {
		return 0, fmt.Errorf("power meter short read: %d bytes", n)
	}
	return binary.BigEndian.Uint32(buf), nil
}
