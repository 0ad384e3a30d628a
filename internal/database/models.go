package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type Repository struct {
	ID             int64
	Owner          string
	Name           string
	StargazerCount int32
	RegisteredDate pgtype.Date
	DbCreatedAt    time.Time
	DbUpdatedAt    time.Time
}

type StarEntry struct {
	ID       int64
	Bucket   string
	RepoID   int64
	Username string
}
