/*Package gpio provides thin wrappers over the sysfs GPIO value files on
the controller board.

The bring-up scripts export the pins and set their directions before this
process starts; here the value files are opened once and held open for
the life of the process.  Writes are single bytes ("1"/"0") and are
independent, so concurrent writers need no lock.
*/
package gpio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Output is a sysfs GPIO held open for writing.
type Output struct {
	path string
	f    *os.File
}

// NewOutput opens the value file for an output pin.
func NewOutput(path string) (*Output, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open gpio output %s: %w", path, err)
	}
	return &Output{path: path, f: f}, nil
}

// Set drives the pin high (true) or low (false).
func (o *Output) Set(on bool) error {
	b := []byte("0")
	if on {
		b[0] = '1'
	}
	if _, err := o.f.WriteAt(b, 0); err != nil {
		return fmt.Errorf("write gpio %s: %w", o.path, err)
	}
	return nil
}

// Path returns the sysfs value file path.
func (o *Output) Path() string { return o.path }

// Close releases the value file.
func (o *Output) Close() error { return o.f.Close() }

// Input is a sysfs GPIO held open for reading.
type Input struct {
	path string
	f    *os.File
}

// NewInput opens the value file for an input pin.
func NewInput(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gpio input %s: %w", path, err)
	}
	return &Input{path: path, f: f}, nil
}

// Read returns the pin level, rewinding the value file each time.
func (in *Input) Read() (bool, error) {
	buf := make([]byte, 4)
	n, err := in.f.ReadAt(buf, 0)
	if n < 1 && err != nil {
		return false, fmt.Errorf("read gpio %s: %w", in.path, err)
	}
	return buf[0] == '1', nil
}

// Close releases the value file.
func (in *Input) Close() error { return in.f.Close() }

// WaitRisingEdge blocks until the pin's interrupt edge fires or the
// timeout elapses.  The pin's sysfs edge file must already be set to
// "rising" by the bring-up script.  It returns true when the edge
// fired, false on timeout.
func (in *Input) WaitRisingEdge(timeoutMillis int) (bool, error) {
	// A dummy read arms the interrupt; sysfs requires consuming the
	// current value before poll reports POLLPRI.
	if _, err := in.Read(); err != nil {
		return false, err
	}
	fds := []unix.PollFd{{Fd: int32(in.f.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	n, err := unix.Poll(fds, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, fmt.Errorf("poll gpio %s: %w", in.path, err)
	}
	return n > 0 && fds[0].Revents&unix.POLLPRI != 0, nil
}
