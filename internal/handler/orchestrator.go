// Package handler implements the redirect orchestration endpoints: click
// entry, chain tracking, click-by-id, capture reconciliation, the tracking
// pixel, and tracking-link minting.
package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/dedup"
	"github.com/afftrack/linktrack/internal/domain"
	"github.com/afftrack/linktrack/internal/follower"
	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/recorder"
	"github.com/afftrack/linktrack/internal/signing"
)

// maxLinkAge is how long a signed tracking link stays valid.
const maxLinkAge = 24 * time.Hour

// AttributionStore is the storage surface the orchestrator records into.
type AttributionStore interface {
	InsertClick(ctx context.Context, rec *domain.ClickRecord) error
	GetClick(ctx context.Context, clickID string) (*domain.ClickRecord, error)
	UpdateStatus(ctx context.Context, clickID string, next domain.Status) error
	RecordPhysicalClick(ctx context.Context, clickID, ipAddress, userAgent string, clickedAt time.Time) error
	AppendAggregate(ctx context.Context, affiliateID, kind string, entry any) error
}

// ChainFollower resolves redirect chains server-side.
type ChainFollower interface {
	Follow(ctx context.Context, startURL string) follower.Result
}

// Deduper decides click identity for inbound visits.
type Deduper interface {
	Decide(ctx context.Context, v dedup.Visit) (dedup.Decision, error)
	Commit(ctx context.Context, sess *domain.UserSession) (bool, error)
}

// Config carries the orchestrator's settings.
type Config struct {
	// BaseURL is the externally visible origin for minted links.
	BaseURL string
	// FallbackURL receives visitors when redirect resolution fails.
	FallbackURL string
	// RequireSignature rejects unsigned redirect entries.
	RequireSignature bool
	// SettlingDelay is the capture script's wait before reading the
	// browser URL.
	SettlingDelay time.Duration
}

// Orchestrator ties the redirect pipeline together. Attribution writes go
// through the recorder and never block or fail a redirect response.
type Orchestrator struct {
	store  AttributionStore
	follow ChainFollower
	dedupe Deduper
	rec    *recorder.Recorder
	signer *signing.Signer
	cfg    Config
	logger logger.Logger
}

// New creates an Orchestrator.
func New(
	store AttributionStore,
	follow ChainFollower,
	dedupe Deduper,
	rec *recorder.Recorder,
	signer *signing.Signer,
	cfg Config,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:  store,
		follow: follow,
		dedupe: dedupe,
		rec:    rec,
		signer: signer,
		cfg:    cfg,
		logger: log,
	}
}

// failSafe sends the visitor to the fallback URL. Advertising traffic must
// never land on an error page, whatever went wrong internally.
func (o *Orchestrator) failSafe(c *gin.Context, reason string, err error) {
	o.logger.Error("Redirect failed, sending visitor to fallback",
		logger.String("reason", reason),
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	c.Redirect(http.StatusFound, o.cfg.FallbackURL)
	c.Abort()
}

// isBot reports whether the bot-filter middleware flagged this request.
// Bots are still redirected but never recorded.
func isBot(c *gin.Context) bool {
	return c.GetBool("is_bot")
}

// validDestination reports whether raw parses as an absolute http(s) URL.
func validDestination(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// withQuery returns raw with the given parameters appended to its query
// string. Existing parameters are preserved.
func withQuery(raw string, params map[string]string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for key, val := range params {
		q.Set(key, val)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// queryParamMap flattens the request's query parameters, keeping the first
// value per key.
func queryParamMap(c *gin.Context) map[string]string {
	values := c.Request.URL.Query()
	if len(values) == 0 {
		return nil
	}
	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params
}
