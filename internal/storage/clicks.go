package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/afftrack/linktrack/internal/domain"
)

// ErrNoTransition re-exports the lifecycle sentinel for storage callers.
var ErrNoTransition = domain.ErrNoTransition

const insertClickSQL = `INSERT INTO click_records
	(click_id, affiliate_id, campaign_id, publisher_id, advertiser_id,
	 source_tag, preview_url, status, ip_address, user_agent, params,
	 click_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const selectClickSQL = `SELECT click_id, affiliate_id, campaign_id, publisher_id,
	advertiser_id, source_tag, preview_url, status, ip_address, user_agent,
	params, click_count, created_at, clicked_at
FROM click_records WHERE click_id = $1`

// InsertClick stores a new click record. The click identifier must be
// unique; a duplicate insert is a caller error.
func (s *Store) InsertClick(ctx context.Context, rec *domain.ClickRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	params, err := marshalParams(rec.Params)
	if err != nil {
		return fmt.Errorf("marshal click params: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertClickSQL,
		rec.ClickID, rec.AffiliateID, rec.CampaignID, rec.PublisherID,
		rec.AdvertiserID, rec.SourceTag, rec.PreviewURL, string(rec.Status),
		rec.IPAddress, rec.UserAgent, params, rec.ClickCount, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert click record: %w", err)
	}
	return nil
}

// GetClick loads a click record by identifier. Returns ErrNotFound when no
// record exists.
func (s *Store) GetClick(ctx context.Context, clickID string) (*domain.ClickRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		rec       domain.ClickRecord
		status    string
		params    []byte
		clickedAt sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, selectClickSQL, clickID).Scan(
		&rec.ClickID, &rec.AffiliateID, &rec.CampaignID, &rec.PublisherID,
		&rec.AdvertiserID, &rec.SourceTag, &rec.PreviewURL, &status,
		&rec.IPAddress, &rec.UserAgent, &params, &rec.ClickCount,
		&rec.CreatedAt, &clickedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select click record: %w", err)
	}

	rec.Status = domain.Status(status)
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("click record %s has unknown status %q", clickID, status)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &rec.Params); err != nil {
			return nil, fmt.Errorf("unmarshal click params: %w", err)
		}
	}
	if clickedAt.Valid {
		t := clickedAt.Time
		rec.ClickedAt = &t
	}
	return &rec, nil
}

// UpdateStatus moves a click record's lifecycle state forward. The rank
// guard in SQL makes regression impossible even under concurrent updates;
// an attempted regression returns ErrNoTransition.
func (s *Store) UpdateStatus(ctx context.Context, clickID string, next domain.Status) error {
	if !next.Valid() {
		return fmt.Errorf("unknown status %q", next)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := fmt.Sprintf(
		`UPDATE click_records SET status = $2 WHERE click_id = $1 AND %s <= %s`,
		fmt.Sprintf(statusRankCase, "status"),
		fmt.Sprintf(statusRankCase, "$2"),
	)

	res, err := s.db.ExecContext(ctx, query, clickID, string(next))
	if err != nil {
		return fmt.Errorf("update click status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update click status: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNoTransition
	}
	return nil
}

const recordClickSQL = `UPDATE click_records
SET status = 'clicked',
    ip_address = $2,
    user_agent = $3,
    clicked_at = $4,
    click_count = click_count + 1
WHERE click_id = $1`

// RecordPhysicalClick marks a click record as clicked, capturing the
// visitor's address and agent and bumping the click counter. "clicked" is
// the terminal state so the transition is always forward.
func (s *Store) RecordPhysicalClick(
	ctx context.Context,
	clickID, ipAddress, userAgent string,
	clickedAt time.Time,
) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, recordClickSQL, clickID, ipAddress, userAgent, clickedAt)
	if err != nil {
		return fmt.Errorf("record physical click: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record physical click: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// marshalParams serializes query parameters for the JSONB column. A nil map
// stores SQL NULL rather than the string "null".
func marshalParams(params map[string]string) ([]byte, error) {
	if len(params) == 0 {
		return nil, nil
	}
	return json.Marshal(params)
}
