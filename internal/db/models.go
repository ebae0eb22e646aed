package db

import (
	"time"

	"github.com/google/uuid"
)

// Space is a tenant-visible grouping of documents owned by one user.
// Space ids are plain strings so the implicit "default" space can coexist
// with generated ids.
type Space struct {
	ID          string
	Owner       string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentRecord describes an uploaded file, distinct from its chunks.
// Filename is unique within an (owner, space) pair.
type DocumentRecord struct {
	ID          uuid.UUID
	Filename    string
	SpaceID     string
	Owner       string
	SizeBytes   int64
	ContentType string
	UploadedAt  time.Time
}
