package domain

import "time"

// ClickType classifies a session decision made by the dedup policy.
type ClickType string

const (
	// FirstClick means a fresh click identifier was minted for the visit.
	FirstClick ClickType = "first_click"
	// RepeatClick means an earlier session's click identifier was reused.
	RepeatClick ClickType = "repeat_click"
	// AlreadyProcessed means this exact browser session was seen before
	// and nothing new was recorded.
	AlreadyProcessed ClickType = "already_processed"
)

// UserSession records one browser visit within a campaign. SessionID is the
// generated browser-session identifier; it is never recorded twice.
type UserSession struct {
	SessionID   string    `json:"session_id"`
	AffiliateID string    `json:"affiliate_id"`
	CampaignID  string    `json:"campaign_id"`
	ClickID     string    `json:"click_id"`
	IPAddress   string    `json:"ip_address"`
	ClickType   ClickType `json:"click_type"`
	CreatedAt   time.Time `json:"created_at"`
}
