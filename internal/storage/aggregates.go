package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// appendAggregateSQL appends one entry to an affiliate aggregate in a single
// statement. The entries array and total counter move together atomically,
// so total always equals the array length and last_at never decreases.
const appendAggregateSQL = `INSERT INTO affiliate_aggregates
	(affiliate_id, kind, entries, total, first_at, last_at)
VALUES ($1, $2, jsonb_build_array($3::jsonb), 1, $4, $4)
ON CONFLICT (affiliate_id, kind) DO UPDATE
SET entries = affiliate_aggregates.entries || excluded.entries,
    total   = affiliate_aggregates.total + 1,
    last_at = GREATEST(affiliate_aggregates.last_at, excluded.last_at)`

// AppendAggregate appends entry to the (affiliateID, kind) aggregate,
// creating the document with a singleton array when none exists.
func (s *Store) AppendAggregate(ctx context.Context, affiliateID, kind string, entry any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal aggregate entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, appendAggregateSQL,
		affiliateID, kind, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append %s aggregate for %s: %w", kind, affiliateID, err)
	}
	return nil
}

const selectAggregateSQL = `SELECT entries, total, first_at, last_at
FROM affiliate_aggregates WHERE affiliate_id = $1 AND kind = $2`

// Aggregate is a per-affiliate append-only capture log with counters.
type Aggregate struct {
	AffiliateID string
	Kind        string
	Entries     json.RawMessage
	Total       int
	FirstAt     time.Time
	LastAt      time.Time
}

// GetAggregate loads one aggregate document. Returns ErrNotFound when the
// affiliate has no entries of this kind yet.
func (s *Store) GetAggregate(ctx context.Context, affiliateID, kind string) (*Aggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	agg := Aggregate{AffiliateID: affiliateID, Kind: kind}
	var entries []byte

	err := s.db.QueryRowContext(ctx, selectAggregateSQL, affiliateID, kind).
		Scan(&entries, &agg.Total, &agg.FirstAt, &agg.LastAt)
	if err != nil {
		return nil, fmt.Errorf("select %s aggregate for %s: %w", kind, affiliateID, err)
	}

	agg.Entries = json.RawMessage(entries)
	return &agg, nil
}
