package queue

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubBroker is the durable, multi-replica Broker backend (§4.C: "durable
// queue"). One topic carries job IDs; one subscription per worker-pool
// deployment drains it.
type PubSubBroker struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
}

// NewPubSubBroker connects to project and resolves the named topic and
// subscription, mirroring the teacher's gcpclient pattern of resolving a
// single GCP resource per adapter at construction time.
func NewPubSubBroker(ctx context.Context, project, topicID, subID string) (*PubSubBroker, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("queue.NewPubSubBroker: %w", err)
	}
	return &PubSubBroker{
		client: client,
		topic:  client.Topic(topicID),
		sub:    client.Subscription(subID),
	}, nil
}

func (b *PubSubBroker) Publish(ctx context.Context, jobID string) error {
	result := b.topic.Publish(ctx, &pubsub.Message{Data: []byte(jobID)})
	_, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("queue: publish job %s: %w", jobID, err)
	}
	return nil
}

// Subscribe starts a background receive loop and returns a channel of job
// IDs. The loop exits when ctx is cancelled.
func (b *PubSubBroker) Subscribe(ctx context.Context) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		err := b.sub.Receive(ctx, func(_ context.Context, m *pubsub.Message) {
			select {
			case out <- string(m.Data):
				m.Ack()
			case <-ctx.Done():
				m.Nack()
			}
		})
		if err != nil && ctx.Err() == nil {
			// Receive returning outside of context cancellation indicates a
			// terminal subscription error; callers observe this as the
			// channel closing with no further jobs delivered.
			return
		}
	}()
	return out, nil
}

func (b *PubSubBroker) Close() error {
	b.client.Close()
	return nil
}
