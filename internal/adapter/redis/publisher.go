package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultFrameChannel = "vibe:frames"

// FramePublisher publishes every frame as JSON on a Redis Pub/Sub channel, so other
// processes (displays, recorders) can follow the stream.
type FramePublisher struct {
	rdb     *goredis.Client
	channel string
}

var _ domain.FrameEmitter = (*FramePublisher)(nil)

// NewFramePublisher publishes on channel, or "vibe:frames" when channel is empty.
func NewFramePublisher(rdb *goredis.Client, channel string) *FramePublisher {
	if channel == "" {
		channel = defaultFrameChannel
	}
	return &FramePublisher{rdb: rdb, channel: channel}
}

func (p *FramePublisher) Emit(ctx context.Context, frame domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	return nil
}

// Channel is the Pub/Sub channel frames are published on.
func (p *FramePublisher) Channel() string {
	return p.channel
}
