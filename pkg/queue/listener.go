package queue

import (
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// NotifyChannel is the Postgres channel workers LISTEN on and Enqueue/
// EnqueueBatch NOTIFY after a commit, per SPEC_FULL.md §4.3's wake-up
// channel expansion.
const NotifyChannel = "ocrflow_queue"

// NotifyListener bridges a pq.Listener subscription on NotifyChannel to a
// Queue's in-process Wake, so workers running against the same database get
// near-immediate pickup instead of waiting out the poll interval. It is an
// optimization: the queue remains correct under pure polling if the listener
// is never started, e.g. in tests or against a non-Postgres driver.
type NotifyListener struct {
	queue    *Queue
	listener *pq.Listener
	logger   *logrus.Logger
}

// NewNotifyListener dials a dedicated LISTEN connection against dsn.
// minReconnect/maxReconnect bound pq.Listener's backoff between reconnect
// attempts if the connection drops.
func NewNotifyListener(queue *Queue, dsn string, minReconnect, maxReconnect time.Duration, logger *logrus.Logger) *NotifyListener {
	nl := &NotifyListener{queue: queue, logger: logger}
	nl.listener = pq.NewListener(dsn, minReconnect, maxReconnect, nl.eventCallback)
	return nl
}

func (nl *NotifyListener) eventCallback(ev pq.ListenerEventType, err error) {
	if err != nil && nl.logger != nil {
		nl.logger.WithError(err).Warn("queue notify listener event error")
	}
}

// Start subscribes to NotifyChannel and runs until Stop is called or the
// underlying connection is closed. Callers should run it in its own
// goroutine.
func (nl *NotifyListener) Start() error {
	if err := nl.listener.Listen(NotifyChannel); err != nil {
		return err
	}
	for notification := range nl.listener.Notify {
		if notification == nil {
			continue
		}
		nl.queue.Wake()
	}
	return nil
}

// Stop closes the LISTEN connection.
func (nl *NotifyListener) Stop() error {
	return nl.listener.Close()
}
