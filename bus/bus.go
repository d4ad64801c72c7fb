/*Package bus wraps the ZeroMQ publish/subscribe sockets that connect the
controller to the two display units.

The controller binds one PUB socket per outbound stream (system state,
raw thermistor data, per-GUI command responses, firmware results) and
connects one SUB socket per inbound stream (commands, heartbeats, time
sync, firmware updates).  Every subscriber filters on the
length-prefixed topic tag at the head of each frame.

Receive loops poll with a timeout so a cancelled context stops them
within one poll interval.
*/
package bus

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/mattyIce83/frontier-uhc/msg"
)

const recvTimeout = 250 * time.Millisecond

// Publisher is a PUB socket bound to one controller port.
type Publisher struct {
	sock *zmq4.Socket
}

// NewPublisher binds a PUB socket on the given address and port.
func NewPublisher(ctx *zmq4.Context, bindIP string, port int) (*Publisher, error) {
	sock, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("tcp://%s:%d", bindIP, port)
	if err := sock.Bind(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("bind %s: %w", endpoint, err)
	}
	return &Publisher{sock: sock}, nil
}

// Publish frames v under topic and sends it.  Sending never blocks the
// caller: PUB sockets drop when no peer is connected, which is the
// fire-and-forget behavior the state publisher requires.
func (p *Publisher) Publish(topic string, v interface{}) error {
	frame, err := msg.Encode(topic, v)
	if err != nil {
		return err
	}
	_, err = p.sock.SendBytes(frame, zmq4.DONTWAIT)
	return err
}

// Close releases the socket.
func (p *Publisher) Close() error {
	return p.sock.Close()
}

// Subscriber is a SUB socket connected to one remote publisher and
// filtered to a single topic tag.
type Subscriber struct {
	sock *zmq4.Socket
}

// NewSubscriber connects a SUB socket to the remote endpoint and
// installs the topic-prefix filter.
func NewSubscriber(ctx *zmq4.Context, remoteIP string, port int, topic string) (*Subscriber, error) {
	sock, err := ctx.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("tcp://%s:%d", remoteIP, port)
	if err := sock.Connect(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	prefix, err := msg.Frame(topic)
	if err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.SetSubscribe(string(prefix)); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.SetRcvtimeo(recvTimeout); err != nil {
		sock.Close()
		return nil, err
	}
	return &Subscriber{sock: sock}, nil
}

// Recv blocks for the next matching frame and returns its body with the
// topic tag stripped.  It returns ctx.Err() once the context is
// cancelled; transient receive timeouts are retried internally.
func (s *Subscriber) Recv(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := s.sock.RecvBytes(0)
		if err != nil {
			// EAGAIN is the receive timeout expiring; go around and
			// check the context again.
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			return nil, err
		}
		_, body, err := msg.Decode(raw)
		if err != nil {
			return nil, err
		}
		return body, nil
	}
}

// Close releases the socket.
func (s *Subscriber) Close() error {
	return s.sock.Close()
}
