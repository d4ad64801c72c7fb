/*Package eventlog is the bridge between the realtime subsystems and the
on-disk operational log.

Producers (the scanner, the supervisor, the command handler, the
monitors) enqueue records on a small bounded queue with a short timeout
so a stalled SD card can never block a control loop; a single consumer
drains the queue into a daily CSV file and the rolling recent-errors
file.
*/
package eventlog

import "time"

// Kind discriminates the record union.
type Kind int

// Record kinds.
const (
	KindError Kind = iota
	KindCommand
	KindInternal
	KindStop
)

// Record is one queued log entry.  Exactly the fields for its Kind are
// populated.
type Record struct {
	Kind Kind
	Time time.Time

	// KindError
	Code        string // Henny Penny error code, e.g. "E-4B"
	Location    string // physical location, e.g. "Heat sink"
	Description string // also carried by KindInternal

	// KindCommand
	GUI      int // 1 or 2
	Command  string
	Response string

	// KindInternal
	Event string
}

// Error builds an error record stamped now.
func Error(code, location, description string) Record {
	return Record{Kind: KindError, Time: time.Now(), Code: code, Location: location, Description: description}
}

// Command builds a command-event record stamped now.
func Command(gui int, command, response string) Record {
	return Record{Kind: KindCommand, Time: time.Now(), GUI: gui, Command: command, Response: response}
}

// Internal builds an internal-event record stamped now.
func Internal(event, description string) Record {
	return Record{Kind: KindInternal, Time: time.Now(), Event: event, Description: description}
}

// Stop is the sentinel that drains and terminates the consumer.  It is
// shoved to the front of the queue on power-sag shutdown.
func Stop() Record {
	return Record{Kind: KindStop, Time: time.Now()}
}
