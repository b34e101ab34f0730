package entity

import "time"

// KnowledgeEntry is reference material a role consults before acting
type KnowledgeEntry struct {
	EntryID         string    `json:"entry_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags"`
	ApplicableRoles []string  `json:"applicable_roles"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the fields required for an upsert
func (k *KnowledgeEntry) Validate() error {
	if k.EntryID == "" {
		return invalidf("entry_id is required")
	}
	if k.Title == "" {
		return invalidf("title is required for entry %s", k.EntryID)
	}
	if len(k.ApplicableRoles) == 0 {
		return invalidf("entry %s must apply to at least one role", k.EntryID)
	}
	if k.Version <= 0 {
		k.Version = 1
	}
	return nil
}
