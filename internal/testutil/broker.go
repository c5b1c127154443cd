package testutil

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// MQTT control packet types handled by Broker.
const (
	mqttConnect    = 1
	mqttPingReq    = 12
	mqttDisconnect = 14
)

// Broker is a minimal MQTT 3.1.1 broker on a loopback port. It accepts every
// CONNECT, answers PINGREQ and ignores everything else. It is enough for a
// client to hold a live connection.
type Broker struct {
	ln       net.Listener
	accepted atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

// StartBroker listens on 127.0.0.1 with a random port.
func StartBroker() (*Broker, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	b := &Broker{ln: ln}
	b.wg.Add(1)
	go b.acceptLoop()
	return b, nil
}

// URL returns the broker address in paho form, e.g. "tcp://127.0.0.1:41234".
func (b *Broker) URL() string {
	return "tcp://" + b.ln.Addr().String()
}

// Connections returns how many CONNECT packets were accepted.
func (b *Broker) Connections() int {
	return int(b.accepted.Load())
}

// Close stops accepting and drops every client connection.
func (b *Broker) Close() {
	_ = b.ln.Close()
	b.mu.Lock()
	for _, c := range b.conns {
		_ = c.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Broker) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()

		b.wg.Add(1)
		go b.serve(conn)
	}
}

func (b *Broker) serve(conn net.Conn) {
	defer b.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		kind, err := readPacket(r)
		if err != nil {
			return
		}
		switch kind {
		case mqttConnect:
			b.accepted.Add(1)
			// CONNACK, session not present, accepted
			if _, err := conn.Write([]byte{0x20, 0x02, 0x00, 0x00}); err != nil {
				return
			}
		case mqttPingReq:
			if _, err := conn.Write([]byte{0xD0, 0x00}); err != nil {
				return
			}
		case mqttDisconnect:
			return
		}
	}
}

// readPacket consumes one control packet and returns its type.
func readPacket(r *bufio.Reader) (byte, error) {
	header, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	length, multiplier := 0, 1
	for i := 0; ; i++ {
		if i == 4 {
			return 0, errors.New("mqtt: malformed remaining length")
		}
		digit, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		length += int(digit&0x7F) * multiplier
		multiplier *= 128
		if digit&0x80 == 0 {
			break
		}
	}

	if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
		return 0, err
	}
	return header >> 4, nil
}
