package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/dedup"
	"github.com/afftrack/linktrack/internal/domain"
	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/signing"
)

// errMissingRedirectParams is returned when the redirect entry lacks its
// required parameters.
var errMissingRedirectParams = errors.New("missing required parameters (affiliate_id, url)")

// HandleRedirect is the click entry point. It validates parameters,
// settles the click identity, fires attribution storage, and sends the
// visitor into the chain tracker (or straight to the destination with
// direct=1).
func (o *Orchestrator) HandleRedirect(c *gin.Context) {
	affiliateID := c.Query("affiliate_id")
	destination := c.Query("url")

	// Validation failures respond 4xx with no side effects.
	if affiliateID == "" || destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingRedirectParams.Error()})
		return
	}
	if !validDestination(destination) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) URL"})
		return
	}

	campaignID := c.Query("campaign_id")
	publisherID := c.Query("pub_id")

	if o.cfg.RequireSignature && !o.verifyLinkSignature(c, affiliateID, campaignID, publisherID, destination) {
		return
	}

	clickID, clickType := o.identify(c, affiliateID, campaignID, destination)

	if clickType != domain.AlreadyProcessed && !isBot(c) {
		o.persistClick(c, clickID, affiliateID, campaignID, publisherID, destination, clickType)
	}

	if c.Query("direct") == "1" {
		// Fast path: skip server-side chain discovery.
		o.enqueueStatus(clickID, domain.StatusRedirected)
		c.Redirect(http.StatusFound, destination)
		return
	}

	c.Redirect(http.StatusFound, o.chainTrackURL(clickID, affiliateID, campaignID, publisherID, destination))
}

// identify settles the click identifier for this visit: an explicit
// click_id from a minted link wins, otherwise the dedup policy decides.
func (o *Orchestrator) identify(c *gin.Context, affiliateID, campaignID, destination string) (string, domain.ClickType) {
	if explicit := c.Query("click_id"); explicit != "" {
		return explicit, domain.RepeatClick
	}

	visit := dedup.Visit{
		AffiliateID: affiliateID,
		CampaignID:  campaignID,
		SessionID:   c.Query("session_id"),
		IPAddress:   c.ClientIP(),
	}

	decision, err := o.dedupe.Decide(c.Request.Context(), visit)
	if err != nil {
		// The policy already degraded to a fresh identifier; the visit
		// proceeds on it.
		o.logger.Warn("Dedup lookup degraded",
			logger.String("affiliate_id", affiliateID),
			logger.Error(err),
		)
	}
	return decision.ClickID, decision.Type
}

// persistClick fires the ClickRecord and session writes without blocking
// the redirect.
func (o *Orchestrator) persistClick(
	c *gin.Context,
	clickID, affiliateID, campaignID, publisherID, destination string,
	clickType domain.ClickType,
) {
	rec := &domain.ClickRecord{
		ClickID:     clickID,
		AffiliateID: affiliateID,
		CampaignID:  campaignID,
		PublisherID: publisherID,
		SourceTag:   c.Query("source"),
		PreviewURL:  destination,
		Status:      domain.StatusPending,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Params:      queryParamMap(c),
		CreatedAt:   time.Now().UTC(),
	}

	sessionID := c.Query("session_id")

	o.rec.Enqueue("click_record", func(ctx context.Context) error {
		if clickType == domain.FirstClick {
			if err := o.store.InsertClick(ctx, rec); err != nil {
				return err
			}
		} else {
			// Reused identifier: the record exists, move it forward.
			if err := o.store.UpdateStatus(ctx, clickID, domain.StatusPending); err != nil &&
				!errors.Is(err, domain.ErrNoTransition) {
				return err
			}
		}
		if sessionID == "" {
			return nil
		}
		_, err := o.dedupe.Commit(ctx, &domain.UserSession{
			SessionID:   sessionID,
			AffiliateID: affiliateID,
			CampaignID:  campaignID,
			ClickID:     clickID,
			IPAddress:   rec.IPAddress,
			ClickType:   clickType,
			CreatedAt:   rec.CreatedAt,
		})
		return err
	})
}

// enqueueStatus fires a forward-only status transition.
func (o *Orchestrator) enqueueStatus(clickID string, next domain.Status) {
	o.rec.Enqueue("click_status", func(ctx context.Context) error {
		err := o.store.UpdateStatus(ctx, clickID, next)
		if err != nil && errors.Is(err, domain.ErrNoTransition) {
			return nil
		}
		return err
	})
}

// chainTrackURL builds the internal chain-tracking redirect target.
func (o *Orchestrator) chainTrackURL(clickID, affiliateID, campaignID, publisherID, destination string) string {
	q := url.Values{}
	q.Set("start_url", destination)
	q.Set("click_id", clickID)
	q.Set("affiliate_id", affiliateID)
	if campaignID != "" {
		q.Set("campaign_id", campaignID)
	}
	if publisherID != "" {
		q.Set("pub_id", publisherID)
	}
	return "/track/chain?" + q.Encode()
}

// verifyLinkSignature checks the HMAC signature and timestamp of a minted
// link. Responds 403 or 410 itself and returns false on rejection.
func (o *Orchestrator) verifyLinkSignature(c *gin.Context, affiliateID, campaignID, publisherID, destination string) bool {
	ts, err := strconv.ParseInt(c.Query("t"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid timestamp"})
		return false
	}

	params := signing.TrackParams{
		AffiliateID:    affiliateID,
		CampaignID:     campaignID,
		PublisherID:    publisherID,
		Timestamp:      ts,
		DestinationURL: destination,
	}
	if !o.signer.Verify(params.Message(), c.Query("sig")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return false
	}

	if time.Since(time.Unix(ts, 0)) > maxLinkAge {
		c.JSON(http.StatusGone, gin.H{"error": "tracking link expired"})
		return false
	}
	return true
}

// HandleClickByID resolves a stored click record and redirects to its
// preview URL with tracking parameters appended. The physical click is
// recorded off the response path.
func (o *Orchestrator) HandleClickByID(c *gin.Context) {
	clickID := c.Param("clickId")

	rec, err := o.store.GetClick(c.Request.Context(), clickID)
	if err != nil {
		// Unknown or unreadable click: the visitor still gets a page.
		o.failSafe(c, "click lookup", err)
		return
	}

	ip := c.ClientIP()
	ua := c.Request.UserAgent()

	if !isBot(c) {
		o.rec.Enqueue("physical_click", func(ctx context.Context) error {
			return o.store.RecordPhysicalClick(ctx, clickID, ip, ua, time.Now().UTC())
		})
	}

	dest := withQuery(rec.PreviewURL, map[string]string{
		"click_id":     rec.ClickID,
		"affiliate_id": rec.AffiliateID,
	})
	c.Redirect(http.StatusFound, dest)
}
