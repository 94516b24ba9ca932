package briefboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// Client provides instance-scoped Redis operations for the brief board.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a brief board client for the specified instance.
// The client automatically namespaces all keys and channels with the
// instance name. Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutBrief writes a Brief to Redis, registers its manuscript in the
// published-manuscripts set, and publishes a Brief event.
// Validates the Brief before writing.
//
// The Brief is stored as a Redis hash at peerlens:{instance}:brief:{manuscript_id}.
// This method is idempotent and doubles as an in-place revision: writing
// the same manuscript's Brief again replaces the previous version.
func (c *Client) PutBrief(ctx context.Context, b *review.Brief) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid brief: %w", err)
	}

	hash, err := BriefToHash(b)
	if err != nil {
		return fmt.Errorf("failed to serialize brief: %w", err)
	}

	key := BriefKey(c.instanceName, b.ManuscriptID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write brief to Redis: %w", err)
	}

	if err := c.rdb.SAdd(ctx, ManuscriptsKey(c.instanceName), b.ManuscriptID).Err(); err != nil {
		return fmt.Errorf("failed to register manuscript: %w", err)
	}

	briefJSON, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal brief for event: %w", err)
	}

	channel := BriefEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, briefJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish brief event: %w", err)
	}

	return nil
}

// GetBrief retrieves a manuscript's Brief.
// Returns (nil, redis.Nil) if no Brief is published for the manuscript.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetBrief(ctx context.Context, manuscriptID string) (*review.Brief, error) {
	key := BriefKey(c.instanceName, manuscriptID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read brief from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	brief, err := HashToBrief(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize brief: %w", err)
	}

	return brief, nil
}

// BriefExists checks if a manuscript has a published Brief without fetching it.
func (c *Client) BriefExists(ctx context.Context, manuscriptID string) (bool, error) {
	key := BriefKey(c.instanceName, manuscriptID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check brief existence: %w", err)
	}
	return exists > 0, nil
}

// PutValidation writes a manuscript's validation result to Redis.
// Validates the result before writing. Full replacement on each write, so
// a retried validation simply overwrites the earlier result.
func (c *Client) PutValidation(ctx context.Context, v *review.ValidationResult) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid validation result: %w", err)
	}

	hash, err := ValidationToHash(v)
	if err != nil {
		return fmt.Errorf("failed to serialize validation result: %w", err)
	}

	key := ValidationKey(c.instanceName, v.ManuscriptID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write validation result to Redis: %w", err)
	}

	return nil
}

// GetValidation retrieves a manuscript's validation result.
// Returns (nil, redis.Nil) if none is stored.
func (c *Client) GetValidation(ctx context.Context, manuscriptID string) (*review.ValidationResult, error) {
	key := ValidationKey(c.instanceName, manuscriptID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read validation result from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	result, err := HashToValidation(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize validation result: %w", err)
	}

	return result, nil
}

// ListManuscripts returns the sorted IDs of all manuscripts with a
// published Brief. Returns an empty slice if none exist (not an error).
func (c *Client) ListManuscripts(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, ManuscriptsKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list manuscripts: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListManuscriptsByStatus returns the sorted IDs of published manuscripts
// whose validation result carries the given status. Manuscripts with a
// Brief but no stored validation result are skipped.
func (c *Client) ListManuscriptsByStatus(ctx context.Context, status review.Status) ([]string, error) {
	all, err := c.ListManuscripts(ctx)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, id := range all {
		result, err := c.GetValidation(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if result.Status == status {
			matched = append(matched, id)
		}
	}
	return matched, nil
}

// Subscription represents an active Pub/Sub subscription to Brief events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver full Brief objects via the Events() channel.
type Subscription struct {
	events <-chan *review.Brief
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of Brief events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *review.Brief {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeBriefEvents subscribes to Brief publication events for this
// instance. Returns a Subscription that delivers full Brief objects.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeBriefEvents(ctx context.Context) (*Subscription, error) {
	channel := BriefEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *review.Brief, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var brief review.Brief
				if err := json.Unmarshal([]byte(msg.Payload), &brief); err != nil {
					// Send error on error channel, skip message
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal brief event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &brief:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetBrief or GetValidation returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
