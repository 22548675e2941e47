package eventbus

import "context"

// Consumer handles events of the types it is subscribed to. Name is used in
// worker logs; GetWorkerCount is read once when the bus starts.
type Consumer interface {
	Name() string
	Consume(ctx context.Context, event Event) error
	GetWorkerCount() int
}
