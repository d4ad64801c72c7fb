package rtd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// SPIBus writes mux programming transactions.  The scanner is the sole
// owner of the bus.
type SPIBus interface {
	Write([]byte) error
	Close() error
}

// ADC reads raw counts from one of the two analog inputs.
type ADC interface {
	Read(bus int) (int, error)
	Close() error
}

// spidev ioctl request numbers for write-mode (8-bit argument) and
// max-speed (32-bit argument).
const (
	spiIOCWrMode       = 0x40016b01
	spiIOCWrMaxSpeedHz = 0x40046b04
)

// muxSPISpeedHz is the PGA117 bus rate.
const muxSPISpeedHz = 1000000

// spiDevice is a spidev character device.
type spiDevice struct {
	f *os.File
}

// OpenMuxSPI opens and configures the analog-mux SPI device: mode 0,
// 1 MHz.
func OpenMuxSPI(path string) (SPIBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open spi %s: %w", path, err)
	}
	fd := int(f.Fd())
	speed := uint32(muxSPISpeedHz)
	if err := unix.IoctlSetPointerInt(fd, spiIOCWrMaxSpeedHz, int(speed)); err != nil {
		f.Close()
		return nil, fmt.Errorf("spi speed %s: %w", path, err)
	}
	mode := uint32(0) // the PGA117 uses SPI mode 0
	if err := unix.IoctlSetPointerInt(fd, spiIOCWrMode, int(mode)); err != nil {
		f.Close()
		return nil, fmt.Errorf("spi mode %s: %w", path, err)
	}
	return &spiDevice{f: f}, nil
}

func (s *spiDevice) Write(b []byte) error {
	n, err := s.f.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("spi short write: %d of %d", n, len(b))
	}
	return nil
}

func (s *spiDevice) Close() error { return s.f.Close() }

// iioADC reads the two IIO raw-voltage files, held open for the life of
// the process.
type iioADC struct {
	files [2]*os.File
}

// OpenADC opens both analog inputs from the pattern (one %d for the
// channel number).
func OpenADC(pattern string) (ADC, error) {
	a := &iioADC{}
	for ch := 0; ch < 2; ch++ {
		f, err := os.Open(fmt.Sprintf(pattern, ch))
		if err != nil {
			for _, g := range a.files {
				if g != nil {
					g.Close()
				}
			}
			return nil, fmt.Errorf("open adc %d: %w", ch, err)
		}
		a.files[ch] = f
	}
	return a, nil
}

// Read rewinds and reads one raw-counts value.
func (a *iioADC) Read(bus int) (int, error) {
	buf := make([]byte, 16)
	n, err := a.files[bus].ReadAt(buf, 0)
	if n <= 1 {
		if err != nil {
			return -1, fmt.Errorf("read adc %d: %w", bus, err)
		}
		return -1, fmt.Errorf("read adc %d: empty", bus)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return -1, fmt.Errorf("parse adc %d: %w", bus, err)
	}
	return v, nil
}

func (a *iioADC) Close() error {
	var first error
	for _, f := range a.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
