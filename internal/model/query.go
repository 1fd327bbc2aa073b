package model

import "time"

// SavedQuery is a user-managed bundle of filter selections, optionally tied
// to an external campaign.
type SavedQuery struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	CreatedAt  time.Time           `json:"created_at"`
	Filters    map[string][]string `json:"filters"`
	CampaignID string              `json:"campaign_id,omitempty"`
}
