package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/domain"
	"github.com/afftrack/linktrack/internal/logger"
)

// HandleChainTrack resolves the full redirect chain for a click, records it
// against the affiliate, and serves the bridge page that hands the visitor
// to the discovered final URL.
func (o *Orchestrator) HandleChainTrack(c *gin.Context) {
	startURL := c.Query("start_url")
	clickID := c.Query("click_id")
	affiliateID := c.Query("affiliate_id")

	if startURL == "" || clickID == "" || affiliateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "missing required parameters (start_url, click_id, affiliate_id)",
		})
		return
	}
	if !validDestination(startURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_url must be an absolute http(s) URL"})
		return
	}

	result := o.follow.Follow(c.Request.Context(), startURL)

	entry := domain.ChainEntry{
		ClickID:     clickID,
		CampaignID:  c.Query("campaign_id"),
		PublisherID: c.Query("pub_id"),
		StartURL:    startURL,
		FinalURL:    result.FinalURL,
		Hops:        result.Hops,
		HopCount:    len(result.Hops),
		Completed:   result.Completed,
		Timestamp:   time.Now().UTC(),
	}

	if !isBot(c) {
		o.rec.Enqueue("chain_entry", func(ctx context.Context) error {
			return o.store.AppendAggregate(ctx, affiliateID, domain.KindChains, entry)
		})
		o.enqueueStatus(clickID, domain.StatusRedirected)
	}

	o.serveBridge(c, affiliateID, clickID, result.FinalURL)
}

// serveBridge renders the bridge page. A rendering failure still redirects
// the visitor, just without the pixel.
func (o *Orchestrator) serveBridge(c *gin.Context, affiliateID, clickID, finalURL string) {
	pixel := url.Values{}
	pixel.Set("affiliate_id", affiliateID)
	pixel.Set("click_id", clickID)
	pixel.Set("final_url", finalURL)

	data := bridgeData{
		FinalURL: finalURL,
		PixelURL: "/pixel.gif?" + pixel.Encode(),
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	if err := bridgePage.Execute(c.Writer, data); err != nil {
		o.failSafe(c, "bridge render", err)
	}
}

// HandleCaptureScript serves the embeddable capture bridge. Landing pages
// load it with data-affiliate and data-click attributes; after the settling
// delay it reports the visible URL when a clickref is present.
func (o *Orchestrator) HandleCaptureScript(c *gin.Context) {
	data := captureData{
		ClickrefParam:   strconv.Quote(clickrefParam),
		CaptureURL:      strconv.Quote(o.cfg.BaseURL + "/capture/client"),
		SettlingDelayMs: o.cfg.SettlingDelay.Milliseconds(),
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/javascript; charset=utf-8")
	c.Header("Cache-Control", "public, max-age=300")
	if err := captureScript.Execute(c.Writer, data); err != nil {
		o.logger.Error("Capture script render failed", logger.Error(err))
	}
}
