package models

import (
	"database/sql"
	"time"
)

// Clip is a finished, shareable artifact. The completion collaborator
// creates the row after assembly; the cleanup sweep owns its expiry.
// FilePath is null for clips whose content lives inline elsewhere.
type Clip struct {
	ID             int64
	ClipID         string
	FilePath       sql.NullString
	Filesize       int64
	ExpirationTime time.Time
	IsExpired      bool
	OneTime        bool
	AccessCodeHash sql.NullString
	CreatedAt      time.Time
	AccessedAt     sql.NullTime
	AccessCount    int64
}
