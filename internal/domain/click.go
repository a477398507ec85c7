// Package domain defines the records produced and persisted by linktrack.
package domain

import (
	"errors"
	"time"
)

// ErrNoTransition is returned by stores when a status update would move the
// lifecycle backwards. Callers treat it as a no-op, not a failure.
var ErrNoTransition = errors.New("status transition not allowed")

// Status is the lifecycle state of a click record. Transitions only move
// forward; a record never regresses to an earlier state.
type Status string

const (
	// StatusGenerated means a tracking link was minted but never visited.
	StatusGenerated Status = "generated"
	// StatusPending means a click arrived and chain resolution is underway.
	StatusPending Status = "pending"
	// StatusRedirected means the visitor was sent to the destination.
	StatusRedirected Status = "redirected"
	// StatusClicked means the physical click was confirmed.
	StatusClicked Status = "clicked"
)

// statusRank orders lifecycle states for forward-only comparison.
var statusRank = map[Status]int{
	StatusGenerated:  0,
	StatusPending:    1,
	StatusRedirected: 2,
	StatusClicked:    3,
}

// CanTransition reports whether moving from s to next respects the
// forward-only lifecycle. Equal states are allowed (idempotent writes).
func (s Status) CanTransition(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// ClickRecord is the durable record for one click identifier.
// The click identifier is immutable once assigned.
type ClickRecord struct {
	ClickID      string            `json:"click_id"`
	AffiliateID  string            `json:"affiliate_id"`
	CampaignID   string            `json:"campaign_id,omitempty"`
	PublisherID  string            `json:"publisher_id,omitempty"`
	AdvertiserID string            `json:"advertiser_id,omitempty"`
	SourceTag    string            `json:"source_tag,omitempty"`
	PreviewURL   string            `json:"preview_url"`
	Status       Status            `json:"status"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	ClickCount   int               `json:"click_count"`
	CreatedAt    time.Time         `json:"created_at"`
	ClickedAt    *time.Time        `json:"clicked_at,omitempty"`
}
