// Package queue carries session ids from the supervisor to workers.
// Messages hold only the id; the store is the source of truth, so a lost
// message is recovered by the liveness sweep.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend names accepted by New
const (
	BackendMemory = "memory"
	BackendAMQP   = "amqp"
	BackendRedis  = "redis"
)

// DefaultName is the queue (or list key) sessions are published to
const DefaultName = "tailoring_sessions"

var (
	// ErrFull is returned by Publish when a bounded queue has no room
	ErrFull = errors.New("queue is full")
	// ErrClosed is returned once Close has been called
	ErrClosed = errors.New("queue is closed")
)

// Handler processes one delivered session id. The message is acknowledged
// when it returns; an error is logged and the message is not redelivered.
type Handler func(ctx context.Context, id uuid.UUID) error

// Queue is a dispatch substrate for session ids
type Queue interface {
	Publish(ctx context.Context, id uuid.UUID) error
	// Ping reports whether the substrate can accept work right now
	Ping(ctx context.Context) error
	// Consume delivers messages to h until ctx is done. It is safe to run
	// several consumers against one Queue.
	Consume(ctx context.Context, h Handler) error
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Backend  string `mapstructure:"backend"`
	Name     string `mapstructure:"name"`
	Buffer   int    `mapstructure:"buffer"`
	AMQPURL  string `mapstructure:"amqp_url"`
	RedisURL string `mapstructure:"redis_url"`
	Prefetch int    `mapstructure:"prefetch"`
}

// New builds the queue named by cfg.Backend
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.Buffer, logger), nil
	case BackendAMQP, "rabbitmq":
		return DialAMQP(cfg.AMQPURL, cfg.Name, cfg.Prefetch, logger)
	case BackendRedis:
		return NewRedis(ctx, cfg.RedisURL, cfg.Name, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func handle(ctx context.Context, h Handler, id uuid.UUID, logger *zap.Logger) {
	if err := h(ctx, id); err != nil {
		logger.Warn("session handler failed",
			zap.String("session_id", id.String()),
			zap.Error(err))
	}
}
