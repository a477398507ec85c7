package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/clickid"
	"github.com/afftrack/linktrack/internal/domain"
	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/signing"
)

// mintLinkRequest asks for a signed tracking link with a pre-allocated
// click identifier.
type mintLinkRequest struct {
	AffiliateID    string `json:"affiliate_id" binding:"required"`
	CampaignID     string `json:"campaign_id"`
	PublisherID    string `json:"publisher_id"`
	DestinationURL string `json:"destination_url" binding:"required"`
	SourceTag      string `json:"source"`
}

// HandleMintLink allocates a click identifier, stores the generated record,
// and returns a signed tracking URL. Minting is synchronous so the caller
// only ever receives links whose record already exists.
func (o *Orchestrator) HandleMintLink(c *gin.Context) {
	var req mintLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "missing required fields (affiliate_id, destination_url)",
		})
		return
	}
	if !validDestination(req.DestinationURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "destination_url must be an absolute http(s) URL"})
		return
	}

	now := time.Now().UTC()
	rec := &domain.ClickRecord{
		ClickID:     clickid.New(),
		AffiliateID: req.AffiliateID,
		CampaignID:  req.CampaignID,
		PublisherID: req.PublisherID,
		SourceTag:   req.SourceTag,
		PreviewURL:  req.DestinationURL,
		Status:      domain.StatusGenerated,
		CreatedAt:   now,
	}

	if err := o.store.InsertClick(c.Request.Context(), rec); err != nil {
		o.logger.Error("Mint link insert failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store tracking link"})
		return
	}

	params := signing.TrackParams{
		AffiliateID:    req.AffiliateID,
		CampaignID:     req.CampaignID,
		PublisherID:    req.PublisherID,
		Timestamp:      now.Unix(),
		DestinationURL: req.DestinationURL,
	}

	c.JSON(http.StatusCreated, gin.H{
		"click_id":     rec.ClickID,
		"tracking_url": o.trackingURL(rec, params, o.signer.Sign(params.Message())),
		"expires_at":   now.Add(maxLinkAge).Format(time.RFC3339),
	})
}

// trackingURL assembles the externally visible redirect entry URL.
func (o *Orchestrator) trackingURL(rec *domain.ClickRecord, params signing.TrackParams, sig string) string {
	q := url.Values{}
	q.Set("affiliate_id", rec.AffiliateID)
	q.Set("url", rec.PreviewURL)
	q.Set("click_id", rec.ClickID)
	if rec.CampaignID != "" {
		q.Set("campaign_id", rec.CampaignID)
	}
	if rec.PublisherID != "" {
		q.Set("pub_id", rec.PublisherID)
	}
	if rec.SourceTag != "" {
		q.Set("source", rec.SourceTag)
	}
	q.Set("t", strconv.FormatInt(params.Timestamp, 10))
	q.Set("sig", sig)
	return o.cfg.BaseURL + "/redirect?" + q.Encode()
}
