package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/domain"
)

// HandleServerCapture re-derives a click's final URL with a fresh
// server-side chain resolution and appends the analysis to the affiliate's
// url_analysis aggregate.
func (o *Orchestrator) HandleServerCapture(c *gin.Context) {
	affiliateID := c.Query("affiliate_id")
	clickID := c.Query("click_id")

	if affiliateID == "" || clickID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "missing required parameters (affiliate_id, click_id)",
		})
		return
	}

	rec, err := o.store.GetClick(c.Request.Context(), clickID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown click id"})
		return
	}

	result := o.follow.Follow(c.Request.Context(), rec.PreviewURL)

	var finalParams map[string]string
	if len(result.Hops) > 0 {
		finalParams = result.Hops[len(result.Hops)-1].Params
	}

	event := domain.CaptureEvent{
		ClickID:   clickID,
		FinalURL:  result.FinalURL,
		Params:    finalParams,
		Clickref:  finalParams[clickrefParam],
		Source:    domain.CaptureSourceServer,
		Timestamp: time.Now().UTC(),
	}

	o.rec.Enqueue("url_analysis", func(ctx context.Context) error {
		return o.store.AppendAggregate(ctx, affiliateID, domain.KindURLAnalysis, event)
	})

	c.JSON(http.StatusOK, gin.H{
		"click_id":  clickID,
		"final_url": result.FinalURL,
		"hop_count": len(result.Hops),
		"completed": result.Completed,
	})
}

// clientCaptureRequest is the body reported by the capture bridge.
type clientCaptureRequest struct {
	AffiliateID string            `json:"affiliateId"`
	ClickID     string            `json:"clickId"`
	FinalURL    string            `json:"finalUrl"`
	Parameters  map[string]string `json:"parameters"`
	UserAgent   string            `json:"userAgent"`
	Referrer    string            `json:"referrer"`
}

// HandleClientCapture reconciles a browser-observed final URL into the
// affiliate's capture aggregates. Only the client can see parameters that
// affiliate-network JavaScript appends after the server-side hops.
func (o *Orchestrator) HandleClientCapture(c *gin.Context) {
	var req clientCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.AffiliateID == "" || req.ClickID == "" || req.FinalURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "missing required fields (affiliateId, clickId, finalUrl)",
		})
		return
	}

	event := domain.CaptureEvent{
		ClickID:   req.ClickID,
		FinalURL:  req.FinalURL,
		Params:    req.Parameters,
		Clickref:  req.Parameters[clickrefParam],
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
		Source:    domain.CaptureSourceClient,
		Timestamp: time.Now().UTC(),
	}

	o.rec.Enqueue("client_capture", func(ctx context.Context) error {
		if err := o.store.AppendAggregate(ctx, req.AffiliateID, domain.KindClientFinalURLs, event); err != nil {
			return err
		}
		if event.Clickref != "" {
			if err := o.store.AppendAggregate(ctx, req.AffiliateID, domain.KindFinalClickref, event); err != nil {
				return err
			}
		}
		err := o.store.UpdateStatus(ctx, req.ClickID, domain.StatusClicked)
		if err != nil && !errors.Is(err, domain.ErrNoTransition) {
			return err
		}
		return nil
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// HandlePixel records a passive capture and always answers with a
// transparent 1×1 GIF. Missing parameters or storage trouble never change
// the response: the pixel must load on every page that embeds it.
func (o *Orchestrator) HandlePixel(c *gin.Context) {
	affiliateID := c.Query("affiliate_id")
	clickID := c.Query("click_id")
	finalURL := c.Query("final_url")

	if affiliateID != "" && clickID != "" && !isBot(c) {
		event := domain.CaptureEvent{
			ClickID:   clickID,
			FinalURL:  finalURL,
			UserAgent: c.Request.UserAgent(),
			Referrer:  c.Request.Referer(),
			Source:    domain.CaptureSourcePixel,
			Timestamp: time.Now().UTC(),
		}

		o.rec.Enqueue("pixel_capture", func(ctx context.Context) error {
			if err := o.store.AppendAggregate(ctx, affiliateID, domain.KindClientFinalURLs, event); err != nil {
				return err
			}
			err := o.store.UpdateStatus(ctx, clickID, domain.StatusClicked)
			if err != nil && !errors.Is(err, domain.ErrNoTransition) {
				return err
			}
			return nil
		})
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/gif", transparentGIF)
}
