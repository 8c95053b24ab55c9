package ledger

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/google/uuid"
)

const (
	defaultBufferSize = 1000
	batchSize         = 100
	flushInterval     = 5 * time.Second
	writeTimeout      = 10 * time.Second
)

// Store persists batches of usage rows. Satisfied by
// repository.UsageRepository in production.
type Store interface {
	UpsertBatch(ctx context.Context, records []models.UsageRecord) error
}

type Entry struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Feature  string
	Tokens   int64
}

// Ledger records per-tenant/day/feature usage asynchronously. Record never
// blocks the request path: entries go onto a buffered channel and a single
// background worker batches them into the store. The budget debit is the
// authoritative counter; these rows are an analytics projection, so a write
// failure is retried once and then dead-lettered to the log instead of
// failing anything upstream.
type Ledger struct {
	store     Store
	entries   chan Entry
	done      chan struct{}
	closeOnce sync.Once
}

func New(store Store, bufferSize int) *Ledger {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	l := &Ledger{
		store:   store,
		entries: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
	}

	go l.worker()

	return l
}

// Record queues a usage entry. Fire-and-forget: if the buffer is full the
// entry is dropped with a log line rather than blocking the caller.
func (l *Ledger) Record(tenantID, userID uuid.UUID, feature string, tokens int64) {
	entry := Entry{
		TenantID: tenantID,
		UserID:   userID,
		Feature:  feature,
		Tokens:   tokens,
	}

	select {
	case l.entries <- entry:
	default:
		log.Printf("ledger: buffer full, dropping usage entry for tenant %s", tenantID)
	}
}

func (l *Ledger) worker() {
	batch := make([]Entry, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.entries:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				l.flush(batch)
				batch = make([]Entry, 0, batchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = make([]Entry, 0, batchSize)
			}
		case <-l.done:
			// Drain whatever is queued before exiting
			for {
				select {
				case entry := <-l.entries:
					batch = append(batch, entry)
				default:
					if len(batch) > 0 {
						l.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (l *Ledger) flush(batch []Entry) {
	records := toRecords(batch, time.Now().UTC())

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := l.store.UpsertBatch(ctx, records)
	if err == nil {
		return
	}

	log.Printf("ledger: batch write failed, retrying once: %v", err)
	if err = l.store.UpsertBatch(ctx, records); err == nil {
		return
	}

	// Dead-letter: keep the data observable in the log stream
	for _, rec := range records {
		payload, _ := json.Marshal(rec)
		log.Printf("ledger: DEAD-LETTER %s", payload)
	}
}

// Collapses same-key entries so one batch produces at most one row per
// (tenant, user, date, feature)
func toRecords(batch []Entry, now time.Time) []models.UsageRecord {
	date := now.Format("2006-01-02")

	type key struct {
		tenant  uuid.UUID
		user    uuid.UUID
		feature string
	}

	index := make(map[key]int)
	records := make([]models.UsageRecord, 0, len(batch))

	for _, entry := range batch {
		k := key{entry.TenantID, entry.UserID, entry.Feature}
		if i, ok := index[k]; ok {
			records[i].TokensUsed += entry.Tokens
			records[i].RequestCount++
			continue
		}

		index[k] = len(records)
		records = append(records, models.UsageRecord{
			TenantID:     entry.TenantID,
			UserID:       entry.UserID,
			Date:         date,
			Feature:      entry.Feature,
			TokensUsed:   entry.Tokens,
			RequestCount: 1,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	return records
}

// Close stops the worker after draining queued entries. Safe to call more
// than once.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}
