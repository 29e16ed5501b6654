package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/trekker/logger"
)

// Notifier is the change feed between the store and the sync layer. Every
// write publishes the table name on a per-table Redis channel; subscribers
// re-fetch the whole table on each message. There is no payload and no
// coalescing: a burst of writes means a burst of re-fetches.
type Notifier struct {
	redis           *redis.Client
	channelTemplate string
}

func New(redisURL, channelTemplate string) (*Notifier, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Notifier{
		redis:           client,
		channelTemplate: channelTemplate,
	}, nil
}

func (n *Notifier) channel(table string) string {
	return strings.Replace(n.channelTemplate, "{table}", table, 1)
}

// Publish is fire-and-forget: a dropped notification costs staleness until
// the next one, not correctness, so failures are only logged.
func (n *Notifier) Publish(table string) {
	if err := n.redis.Publish(context.Background(), n.channel(table), table).Err(); err != nil {
		logger.Error.Printf("Failed to publish change for %s: %v", table, err)
	}
}

// Subscribe returns a channel of table names that changed. The channel is
// closed when ctx is done.
func (n *Notifier) Subscribe(ctx context.Context, tables ...string) (<-chan string, error) {
	channels := make([]string, 0, len(tables))
	for _, table := range tables {
		channels = append(channels, n.channel(table))
	}

	sub := n.redis.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (n *Notifier) Close() error {
	if n.redis != nil {
		return n.redis.Close()
	}
	return nil
}
