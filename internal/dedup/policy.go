// Package dedup decides whether an inbound visit is a new click, a repeat
// from a known visitor, or a replayed browser session that must not be
// recorded twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/afftrack/linktrack/internal/clickid"
	"github.com/afftrack/linktrack/internal/domain"
	"github.com/afftrack/linktrack/internal/logger"
)

// Visit is a candidate session presented to the policy.
type Visit struct {
	AffiliateID string
	CampaignID  string
	SessionID   string
	IPAddress   string
}

// Decision is the policy outcome: the click identifier to use and how it
// was arrived at.
type Decision struct {
	ClickID string
	Type    domain.ClickType
}

// Store is the durable session lookup, backed by Postgres.
type Store interface {
	InsertSession(ctx context.Context, sess *domain.UserSession) (bool, error)
	SessionClickID(ctx context.Context, sessionID string) (string, bool, error)
	RecentClickID(ctx context.Context, affiliateID, campaignID, ipAddress string, since time.Time) (string, bool, error)
}

// Cache is an optional fast lookup tier in front of the Store. Entries
// expire on their own after the dedup window.
type Cache interface {
	SessionClickID(ctx context.Context, sessionID string) (string, bool, error)
	RecentClickID(ctx context.Context, affiliateID, campaignID, ipAddress string) (string, bool, error)
	Remember(ctx context.Context, sess *domain.UserSession) error
}

// Policy applies the click deduplication rules: an exact browser-session
// match is already processed; the same IP+campaign within the window reuses
// that session's click identifier; anything else mints a fresh one.
type Policy struct {
	store  Store
	cache  Cache // nil when no cache tier is configured
	window time.Duration
	mint   func() string
	log    logger.Logger
}

// New creates a Policy. cache may be nil.
func New(store Store, cache Cache, window time.Duration, log logger.Logger) *Policy {
	return &Policy{
		store:  store,
		cache:  cache,
		window: window,
		mint:   clickid.New,
		log:    log,
	}
}

// Decide classifies the visit and selects its click identifier. Lookup
// failures degrade to minting a fresh identifier rather than failing the
// visit; the error is reported alongside the usable decision.
func (p *Policy) Decide(ctx context.Context, v Visit) (Decision, error) {
	if v.SessionID != "" {
		id, found, err := p.sessionLookup(ctx, v.SessionID)
		if err != nil {
			return Decision{ClickID: p.mint(), Type: domain.FirstClick},
				fmt.Errorf("session lookup: %w", err)
		}
		if found {
			return Decision{ClickID: id, Type: domain.AlreadyProcessed}, nil
		}
	}

	id, found, err := p.visitorLookup(ctx, v)
	if err != nil {
		return Decision{ClickID: p.mint(), Type: domain.FirstClick},
			fmt.Errorf("visitor lookup: %w", err)
	}
	if found {
		return Decision{ClickID: id, Type: domain.RepeatClick}, nil
	}

	return Decision{ClickID: p.mint(), Type: domain.FirstClick}, nil
}

// Commit durably records the session decided for a visit and primes the
// cache tier. Returns inserted=false when the session identifier was
// already recorded.
func (p *Policy) Commit(ctx context.Context, sess *domain.UserSession) (bool, error) {
	inserted, err := p.store.InsertSession(ctx, sess)
	if err != nil {
		return false, err
	}

	if inserted && p.cache != nil {
		if cacheErr := p.cache.Remember(ctx, sess); cacheErr != nil {
			// Cache priming is best-effort: the store remains authoritative.
			p.log.Warn("Session cache write failed",
				logger.String("session_id", sess.SessionID),
				logger.Error(cacheErr),
			)
		}
	}
	return inserted, nil
}

// Window returns the configured dedup window.
func (p *Policy) Window() time.Duration {
	return p.window
}

func (p *Policy) sessionLookup(ctx context.Context, sessionID string) (string, bool, error) {
	if p.cache != nil {
		id, found, err := p.cache.SessionClickID(ctx, sessionID)
		if err == nil && found {
			return id, true, nil
		}
		if err != nil {
			p.log.Warn("Session cache lookup failed", logger.Error(err))
		}
	}
	return p.store.SessionClickID(ctx, sessionID)
}

func (p *Policy) visitorLookup(ctx context.Context, v Visit) (string, bool, error) {
	if p.cache != nil {
		id, found, err := p.cache.RecentClickID(ctx, v.AffiliateID, v.CampaignID, v.IPAddress)
		if err == nil && found {
			return id, true, nil
		}
		if err != nil {
			p.log.Warn("Visitor cache lookup failed", logger.Error(err))
		}
	}
	since := time.Now().Add(-p.window)
	return p.store.RecentClickID(ctx, v.AffiliateID, v.CampaignID, v.IPAddress, since)
}
