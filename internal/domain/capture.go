package domain

import "time"

// Aggregate kinds for per-affiliate append-only capture logs.
const (
	KindChains          = "chains"
	KindFinalClickref   = "final_urls_clickref"
	KindClientFinalURLs = "client_final_urls"
	KindURLAnalysis     = "url_analysis"
)

// CaptureEvent is one per-click capture appended to an affiliate aggregate.
// The same shape serves client-reported final URLs, clickref captures,
// pixel confirmations, and server-side URL analysis.
type CaptureEvent struct {
	ClickID   string            `json:"click_id"`
	FinalURL  string            `json:"final_url"`
	Params    map[string]string `json:"params,omitempty"`
	Clickref  string            `json:"clickref,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Referrer  string            `json:"referrer,omitempty"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
}

// Capture sources.
const (
	CaptureSourceClient = "client"
	CaptureSourcePixel  = "pixel"
	CaptureSourceServer = "server"
)
