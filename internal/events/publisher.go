package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/keepalive/internal/project"
)

const DefaultChannel = "keepalive:cycles"

// Publisher announces completed ping cycles to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, report project.CycleReport) error
	Close() error
}

// NopPublisher discards every report. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, project.CycleReport) error { return nil }

func (NopPublisher) Close() error { return nil }

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisPublisher publishes cycle reports as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DisableIdentity: true,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	logger.Info("Connected to Redis", slog.String("addr", cfg.Addr), slog.String("channel", channel))
	return &RedisPublisher{client: client, channel: channel, logger: logger}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, report project.CycleReport) error {
	data, err := Encode(report)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish cycle report: %w", err)
	}
	p.logger.Debug("Published cycle report",
		slog.String("channel", p.channel),
		slog.Int("results", len(report.Results)))
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Encode renders a cycle report in the wire format used on the channel.
func Encode(report project.CycleReport) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cycle report: %w", err)
	}
	return data, nil
}
