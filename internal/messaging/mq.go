package messaging

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"todo-chat/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	connectionPoolSize = 4
	channelWaitTimeout = 2 * time.Minute
)

type RabbitMQ interface {
	GetChannel() (*amqp.Channel, error)
}

type rabbitMQImpl struct {
	logger      *zap.Logger
	rabbitmqURL string
	context     context.Context
	connections []*mqConnection
	mu          sync.Mutex
}

type mqConnection struct {
	conn      *amqp.Connection
	closeChan chan *amqp.Error
	logger    *zap.Logger

	closed bool
	mu     sync.Mutex
}

type RabbitMQParams struct {
	fx.In

	Config    *config.AppConfig
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func NewRabbitMQ(p RabbitMQParams) RabbitMQ {
	mqCtx, cancel := context.WithCancel(context.Background())

	svc := &rabbitMQImpl{
		logger:      p.Logger,
		rabbitmqURL: p.Config.RabbitMQURL,
		context:     mqCtx,
		connections: make([]*mqConnection, 0, connectionPoolSize),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			svc.logger.Info("initializing RabbitMQ connection pool", zap.Int("pool_size", connectionPoolSize))
			for range connectionPoolSize {
				mConn, err := svc.newMQConnection()
				if err != nil {
					svc.logger.Error("failed to create initial RabbitMQ connection", zap.Error(err))
					return err
				}
				svc.mu.Lock()
				svc.connections = append(svc.connections, mConn)
				svc.mu.Unlock()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
	return svc
}

func (r *rabbitMQImpl) getActiveConnection() (*mqConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]*mqConnection, 0, len(r.connections))
	for _, conn := range r.connections {
		conn.mu.Lock()
		if !conn.closed {
			candidates = append(candidates, conn)
		}
		conn.mu.Unlock()
	}

	// Refill the pool when connections have dropped.
	if len(candidates) < connectionPoolSize {
		needed := connectionPoolSize - len(candidates)
		r.logger.Info("refilling RabbitMQ connection pool", zap.Int("needed", needed))
		for range needed {
			mConn, err := r.newMQConnection()
			if err != nil {
				r.logger.Error("failed to create new RabbitMQ connection", zap.Error(err))
				continue
			}
			r.connections = append(r.connections, mConn)
			candidates = append(candidates, mConn)
		}
	}

	if len(candidates) == 0 {
		return nil, errors.New("no active RabbitMQ connections")
	}

	return candidates[rand.Intn(len(candidates))], nil
}

func (r *rabbitMQImpl) newMQConnection() (*mqConnection, error) {
	conn, err := amqp.Dial(r.rabbitmqURL)
	if err != nil {
		return nil, err
	}

	mConn := &mqConnection{
		conn:      conn,
		closeChan: make(chan *amqp.Error),
		logger:    r.logger,
	}

	go mConn.monitor(r.context)

	return mConn, nil
}

// monitor blocks until the connection drops or the service shuts down.
// Intended to run in its own goroutine.
func (c *mqConnection) monitor(ctx context.Context) {
	c.conn.NotifyClose(c.closeChan)

	select {
	case err := <-c.closeChan:
		c.logger.Error("RabbitMQ connection closed", zap.Error(err))
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	case <-ctx.Done():
	}

	c.conn.Close()
}

// GetChannel opens a channel on an active connection, retrying until the wait
// timeout elapses. Event publishing is best effort, so the caller decides how
// hard a failure here is.
func (r *rabbitMQImpl) GetChannel() (*amqp.Channel, error) {
	ctx, cancel := context.WithTimeout(r.context, channelWaitTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		conn, err := r.getActiveConnection()
		if err != nil {
			r.logger.Error("failed to get RabbitMQ connection", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		ch, err := conn.conn.Channel()
		if err != nil {
			r.logger.Error("failed to create RabbitMQ channel", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		return ch, nil
	}
}
