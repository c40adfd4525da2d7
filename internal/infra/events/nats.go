package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix is the root of every change subject.
const SubjectPrefix = "portal"

// OriginHeader names the publishing instance so it can skip its own echoes.
const OriginHeader = "Portal-Origin"

// Subject returns the NATS subject for a change: portal.<collection>.<op>.
func Subject(change domain.Change) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, change.Collection, change.Op)
}

// NATSPublisher mirrors changes onto NATS for out-of-process consumers.
// Publishing is best effort: failures are logged, never returned to writers.
type NATSPublisher struct {
	nc     *nats.Conn
	origin string
	logger *zap.Logger
}

// NewNATSPublisher wraps an open connection. origin identifies this
// process in the OriginHeader of every message.
func NewNATSPublisher(nc *nats.Conn, origin string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, origin: origin, logger: logger}
}

// Connect dials url with reconnects enabled.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("client-portal"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func (p *NATSPublisher) Publish(_ context.Context, change domain.Change) {
	data, err := json.Marshal(change)
	if err != nil {
		p.logger.Error("events: failed to encode change", zap.Error(err))
		return
	}
	subject := Subject(change)
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	msg.Header.Set(OriginHeader, p.origin)
	if err := p.nc.PublishMsg(msg); err != nil {
		p.logger.Warn("events: nats publish failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// SubscribeRemote delivers changes published by other instances, skipping
// messages whose OriginHeader equals origin. Changes are dropped when the
// buffer is full. The returned func unsubscribes and closes the channel.
func SubscribeRemote(nc *nats.Conn, origin string, buffer int, logger *zap.Logger) (<-chan domain.Change, func(), error) {
	out := make(chan domain.Change, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)

	sub, err := nc.Subscribe(SubjectPrefix+".>", func(msg *nats.Msg) {
		if msg.Header.Get(OriginHeader) == origin {
			return
		}
		var change domain.Change
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			logger.Warn("events: undecodable change", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- change:
		default:
			logger.Debug("events: remote buffer full, dropping change", zap.String("subject", msg.Subject))
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s.>: %w", SubjectPrefix, err)
	}

	var once sync.Once
	return out, func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				logger.Debug("events: unsubscribe failed", zap.Error(err))
			}
			mu.Lock()
			closed = true
			close(out)
			mu.Unlock()
		})
	}, nil
}
