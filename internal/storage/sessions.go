package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/afftrack/linktrack/internal/domain"
)

const insertSessionSQL = `INSERT INTO user_sessions
	(session_id, affiliate_id, campaign_id, click_id, ip_address, click_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id) DO NOTHING`

// InsertSession records a browser session. The session identifier is the
// idempotence key: a repeat insert is a no-op and reports inserted=false.
func (s *Store) InsertSession(ctx context.Context, sess *domain.UserSession) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, insertSessionSQL,
		sess.SessionID, sess.AffiliateID, sess.CampaignID, sess.ClickID,
		sess.IPAddress, string(sess.ClickType), sess.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert user session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user session: rows affected: %w", err)
	}
	return affected > 0, nil
}

const sessionClickSQL = `SELECT click_id FROM user_sessions WHERE session_id = $1`

// SessionClickID returns the click identifier recorded for a browser
// session, or found=false when the session is unknown.
func (s *Store) SessionClickID(ctx context.Context, sessionID string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var clickID string
	err := s.db.QueryRowContext(ctx, sessionClickSQL, sessionID).Scan(&clickID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select session click id: %w", err)
	}
	return clickID, true, nil
}

const recentSessionSQL = `SELECT click_id FROM user_sessions
WHERE affiliate_id = $1 AND campaign_id = $2 AND ip_address = $3 AND created_at >= $4
ORDER BY created_at DESC
LIMIT 1`

// RecentClickID returns the most recent click identifier recorded for the
// IP+campaign pair since the cutoff, or found=false when there is none.
// The most-recent session wins when several match.
func (s *Store) RecentClickID(
	ctx context.Context,
	affiliateID, campaignID, ipAddress string,
	since time.Time,
) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var clickID string
	err := s.db.QueryRowContext(ctx, recentSessionSQL,
		affiliateID, campaignID, ipAddress, since,
	).Scan(&clickID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select recent session: %w", err)
	}
	return clickID, true, nil
}
