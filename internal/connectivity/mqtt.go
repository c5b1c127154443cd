package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSignal derives connectivity from two sources:
//
//   - link: at least one non-loopback interface is up with an address
//   - internet: the MQTT client holds a live connection to the broker
//
// Broker connect and connection-lost events form the push feed.
type MQTTSignal struct {
	client         mqtt.Client
	log            *slog.Logger
	linkCheck      func() (bool, error)
	connectTimeout time.Duration

	mu        sync.Mutex
	reachable bool
	watchers  map[int]func(State)
	nextID    int
}

var _ Signal = (*MQTTSignal)(nil)

// MQTTOptions configures NewMQTTSignal.
type MQTTOptions struct {
	Broker         string
	ClientID       string
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// NewMQTTSignal creates the signal. Call Connect to start the broker
// connection; the client reconnects on its own after that.
func NewMQTTSignal(o MQTTOptions) *MQTTSignal {
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	s := &MQTTSignal{
		log:            o.Logger,
		linkCheck:      interfaceLinkUp,
		connectTimeout: o.ConnectTimeout,
		watchers:       make(map[int]func(State)),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(o.RetryInterval).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost)

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect starts the broker connection and waits up to ConnectTimeout for it
// to come up. It reports whether the broker is connected. With connect-retry
// enabled the client keeps trying in the background after a timeout.
func (s *MQTTSignal) Connect() bool {
	tok := s.client.Connect()
	if !tok.WaitTimeout(s.connectTimeout) {
		s.log.Warn("mqtt broker not reachable yet, retrying in background", "waited", s.connectTimeout)
		return false
	}
	if err := tok.Error(); err != nil {
		s.log.Warn("mqtt connect failed", "error", err)
		return false
	}
	s.log.Debug("mqtt connectivity probe connected")
	return true
}

// Close disconnects from the broker.
func (s *MQTTSignal) Close() {
	s.client.Disconnect(250)
}

// Fetch implements Signal.
func (s *MQTTSignal) Fetch(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	link, err := s.linkCheck()
	if err != nil {
		return State{}, err
	}

	open := s.client.IsConnectionOpen()
	s.mu.Lock()
	s.reachable = open
	s.mu.Unlock()

	return State{LinkUp: link, InternetReachable: open}, nil
}

// Watch implements Signal.
func (s *MQTTSignal) Watch(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *MQTTSignal) onConnect(mqtt.Client) {
	s.log.Info("mqtt broker connected")
	s.publish(true)
}

func (s *MQTTSignal) onConnectionLost(_ mqtt.Client, err error) {
	s.log.Warn("mqtt broker connection lost", "error", err)
	s.publish(false)
}

func (s *MQTTSignal) publish(reachable bool) {
	link, err := s.linkCheck()
	if err != nil {
		s.log.Warn("interface scan failed", "error", err)
		link = reachable
	}

	s.mu.Lock()
	s.reachable = reachable
	fns := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	state := State{LinkUp: link, InternetReachable: reachable}
	for _, fn := range fns {
		fn(state)
	}
}

// interfaceLinkUp reports whether any non-loopback interface is up with an
// address.
func interfaceLinkUp() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, err
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return true, nil
	}
	return false, nil
}
