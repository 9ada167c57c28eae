package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

// document is the persisted shape of a task.
// Timestamps are integer Unix microseconds so that ordering and the strictly
// increasing updated field survive the round trip exactly.
type document struct {
	ID      bson.ObjectID `bson:"_id,omitempty"`
	Type    string        `bson:"type"`
	Status  string        `bson:"status"`
	Payload []byte        `bson:"payload,omitempty"`
	Message string        `bson:"message,omitempty"`
	Output  []byte        `bson:"output,omitempty"`
	Created int64         `bson:"created"`
	Updated int64         `bson:"updated"`
}

func (d *document) task() *queue.Task {
	return &queue.Task{
		ID:      d.ID.Hex(),
		Type:    d.Type,
		Status:  queue.Status(d.Status),
		Payload: d.Payload,
		Message: d.Message,
		Output:  d.Output,
		Created: fromMicros(d.Created),
		Updated: fromMicros(d.Updated),
	}
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
