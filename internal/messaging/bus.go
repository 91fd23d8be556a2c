package messaging

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const startupTimeout = 10 * time.Second

// Bus is an embedded NATS server plus an internal client connection. The
// world coordinator publishes events onto it and the WebSocket hub
// subscribes, keeping the two decoupled without leaving the process.
type Bus struct {
	ns   *server.Server
	conn *nats.Conn
}

// NewBus creates the embedded server. Port 0 picks a random free port.
func NewBus(host string, port int) (*Bus, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = server.RANDOM_PORT
	}

	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoSigs: true, // the application owns signal handling
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	return &Bus{ns: ns}, nil
}

// Start brings the server up and dials the internal client connection.
func (b *Bus) Start() error {
	b.ns.Start()

	if !b.ns.ReadyForConnections(startupTimeout) {
		return fmt.Errorf("nats server not ready for connections")
	}

	conn, err := nats.Connect(b.ns.ClientURL())
	if err != nil {
		return fmt.Errorf("connecting internal nats client: %w", err)
	}
	b.conn = conn

	log.Printf("Message bus listening on %s", b.ns.Addr())
	return nil
}

// Shutdown closes the client connection and stops the server.
func (b *Bus) Shutdown() {
	if b.conn != nil {
		b.conn.Close()
	}
	b.ns.Shutdown()
	b.ns.WaitForShutdown()
}

// Publish sends a message to the given subject.
func (b *Bus) Publish(subject string, data []byte) error {
	if b.conn == nil {
		return fmt.Errorf("message bus not started")
	}
	return b.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and returns an
// unsubscribe function.
func (b *Bus) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	if b.conn == nil {
		return nil, fmt.Errorf("message bus not started")
	}
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { sub.Unsubscribe() }, nil
}
