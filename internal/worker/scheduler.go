package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// StartAllWorkers starts the background workers that apply to this
// deployment and returns a channel closed once all of them stopped.
func StartAllWorkers(ctx context.Context, persister *Persister, persistInterval, finalTimeout time.Duration) <-chan struct{} {
	log := logrus.WithField("component", "workers")
	log.Println("Starting all workers...")

	var waits []<-chan struct{}
	if persister != nil {
		waits = append(waits, StartPersistenceWorker(ctx, persister, persistInterval, finalTimeout))
	} else {
		log.Println("No database configured, persistence worker disabled")
	}

	done := make(chan struct{})
	go func() {
		for _, w := range waits {
			<-w
		}
		close(done)
	}()

	log.Println("All workers started")
	return done
}
