package domain

import "time"

// Hop is a single step in a resolved redirect chain. Index is 0-based with
// 0 being the initial URL. A hop with a non-empty Error is always the last
// hop of its chain.
type Hop struct {
	Index   int               `json:"index"`
	URL     string            `json:"url"`
	BaseURL string            `json:"base_url"`
	// Status is nil for a hop that was never fetched server-side,
	// e.g. a target discovered but not visited.
	Status    *int              `json:"status,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	LatencyMs int64             `json:"latency_ms"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ChainEntry is one resolved chain appended to an affiliate's chain log.
// Entries are append-only: existing entries are never rewritten.
type ChainEntry struct {
	ClickID     string    `json:"click_id,omitempty"`
	CampaignID  string    `json:"campaign_id,omitempty"`
	PublisherID string    `json:"publisher_id,omitempty"`
	StartURL    string    `json:"start_url"`
	FinalURL    string    `json:"final_url"`
	Hops        []Hop     `json:"hops"`
	HopCount    int       `json:"hop_count"`
	Completed   bool      `json:"completed"`
	Timestamp   time.Time `json:"timestamp"`
}
