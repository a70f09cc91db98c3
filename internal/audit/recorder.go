package audit

import (
	"context"
	"log"
	"time"

	"vehicle-sense/gateway/internal/domain"
	"vehicle-sense/gateway/internal/metrics"
	"vehicle-sense/gateway/internal/store"
)

// Recorder decouples audit persistence from the request path. Handlers
// enqueue without blocking; a worker drains the queue and writes each
// record on its own context, so a caller disconnect or a storage outage
// never delays or fails the client-visible response.
type Recorder struct {
	ch           chan *domain.AuditRecord
	db           store.AuditStore
	writeTimeout time.Duration
	done         chan struct{}
}

func NewRecorder(db store.AuditStore, queueSize int, writeTimeout time.Duration) *Recorder {
	return &Recorder{
		ch:           make(chan *domain.AuditRecord, queueSize),
		db:           db,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Enqueue hands a record to the worker. When the queue is full the record
// is dropped and counted rather than blocking the response path.
func (r *Recorder) Enqueue(rec *domain.AuditRecord) bool {
	select {
	case r.ch <- rec:
		return true
	default:
		metrics.AuditWrites.WithLabelValues(metrics.AuditDropped).Inc()
		log.Printf("audit queue full, dropping record %s (%s)", rec.ID, rec.Category)
		return false
	}
}

// Run drains the queue until ctx is cancelled, then finishes any records
// already enqueued so in-flight writes are not lost on shutdown.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case rec, ok := <-r.ch:
			if !ok {
				return
			}
			r.write(rec)

		case <-ctx.Done():
			for {
				select {
				case rec := <-r.ch:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) write(rec *domain.AuditRecord) {
	// Detached context: the originating request may be long gone.
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	err := r.db.Append(ctx, rec)
	if err != nil {
		log.Printf("audit write failed for %s (%s), retrying: %v", rec.ID, rec.Category, err)
		time.Sleep(500 * time.Millisecond)
		err = r.db.Append(ctx, rec)
		if err != nil {
			log.Printf("audit write permanently failed for %s (%s): %v", rec.ID, rec.Category, err)
			metrics.AuditWrites.WithLabelValues(metrics.AuditError).Inc()
			return
		}
	}
	metrics.AuditWrites.WithLabelValues(metrics.AuditOK).Inc()
}
