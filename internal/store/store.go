package store

import (
	"context"
	"time"

	"vehicle-sense/gateway/internal/domain"
)

// AuditStore is the append-only persistence behind the gateway. Append must
// be safe for concurrent callers; each write is independently atomic and no
// ordering is guaranteed between records from different requests.
type AuditStore interface {
	Append(ctx context.Context, rec *domain.AuditRecord) error
	Query(ctx context.Context, q AuditQuery) ([]domain.AuditRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// AuditQuery filters records by category and time range. Zero values mean
// "no constraint"; Limit defaults to DefaultQueryLimit.
type AuditQuery struct {
	Category domain.Category
	Since    time.Time
	Until    time.Time
	Limit    int
}

const DefaultQueryLimit = 100

func (q AuditQuery) limit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}
