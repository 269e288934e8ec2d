package events

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"trendcraft/internal/config"
	"trendcraft/internal/logging"
)

// NATSBus is a Bus backed by a NATS connection
type NATSBus struct {
	conn *nats.Conn
}

var _ Bus = (*NATSBus)(nil)

// Connect dials NATS with reconnect handling wired to the logger
func Connect(cfg config.NATSConfig, logger logging.Logger) (*NATSBus, error) {
	options := []nats.Option{
		nats.Name("trendcraft"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", logging.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", logging.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}
	return &NATSBus{conn: nc}, nil
}

// Publish sends data on subject
func (b *NATSBus) Publish(subject string, data []byte) error {
	if err := b.conn.Publish(subject, data); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return ErrClosed
		}
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler for subjects matching pattern
func (b *NATSBus) Subscribe(pattern string, handler Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(pattern, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", pattern, err)
	}
	return sub, nil
}

// Close drains pending messages and closes the connection
func (b *NATSBus) Close() {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}
