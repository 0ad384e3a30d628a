// internal/model/models.go
package model

import (
	"time"
)

// BaselineBucket is the reserved bucket holding every stargazer found when a repository is registered.
const BaselineBucket = "baseline"

// Repository is a tracked GitHub repository.
type Repository struct {
	ID             int64     `json:"id"`
	Owner          string    `json:"owner"`
	Name           string    `json:"repo"`
	StargazerCount int       `json:"stargazers_count"`
	RegisteredDate time.Time `json:"-"`
}

// StarEntry records one stargazer of one repository inside a bucket.
type StarEntry struct {
	RepoID   int64
	Username string
}

// Stargazer is a single item of the upstream stargazer listing.
type Stargazer struct {
	Login string
}

// Entries converts a page of stargazers into bucket entries owned by repoID.
func Entries(repoID int64, stargazers []Stargazer) []StarEntry {
	entries := make([]StarEntry, len(stargazers))
	for i, s := range stargazers {
		entries[i] = StarEntry{RepoID: repoID, Username: s.Login}
	}
	return entries
}

// Usernames returns the usernames of entries in order.
func Usernames(entries []StarEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Username
	}
	return names
}
