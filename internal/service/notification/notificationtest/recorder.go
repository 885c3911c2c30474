// Package notificationtest provides a Notifier that records messages
// instead of sending them.
package notificationtest

import (
	"context"
	"sync"

	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification"
)

type Recorder struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (r *Recorder) Notify(_ context.Context, msg notification.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []notification.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Message(nil), r.msgs...)
}

// Kinds lists recorded message kinds in order.
func (r *Recorder) Kinds() []notification.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Kind, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Kind
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}
