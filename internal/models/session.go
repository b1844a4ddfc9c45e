package models

import "time"

// SessionRecord is one active login as seen by its owner. IsCurrent is set by
// the session store when the record belongs to the requesting session.
type SessionRecord struct {
	ID               string    `json:"id"`
	OwnerUserID      string    `json:"ownerUserId"`
	OriginAddress    string    `json:"originAddress"`
	ClientDescriptor string    `json:"clientDescriptor"`
	CreatedAt        time.Time `json:"createdAt"`
	LastAccessedAt   time.Time `json:"lastAccessedAt"`
	IsCurrent        bool      `json:"isCurrent"`
}

// Session is the stored form of a login session
type Session struct {
	ID             string
	UserID         string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time
}
