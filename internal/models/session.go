package models

import "time"

// SessionStatus is the lifecycle state of an upload session.
type SessionStatus string

const (
	StatusUploading  SessionStatus = "uploading"
	StatusAssembling SessionStatus = "assembling"

	// Terminal states. Terminal rows normally vanish in the same call that
	// writes them; one that survives (a failed cleanup transaction) is a
	// marker for the sweep. Sessions never store an "expired" status:
	// expiry is the expiration_time predicate.
	StatusCompleted SessionStatus = "completed"
	StatusAborted   SessionStatus = "aborted"
)

// UploadSession is the durable record of a chunked upload in progress.
// It is created on initiate, touched by every chunk arrival, and deleted
// after a successful assembly or by the cleanup sweep.
type UploadSession struct {
	UploadID       string
	TotalChunks    int
	BytesExpected  int64
	Status         SessionStatus
	CreatedAt      time.Time
	LastActivity   time.Time
	ExpirationTime time.Time
}

// SessionProgress is the lightweight per-upload counter kept alongside the
// session, cheap enough to mirror into the cache on every chunk arrival.
type SessionProgress struct {
	UploadID       string
	ChunksReceived int
	BytesReceived  int64
}
