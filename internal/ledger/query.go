package ledger

import (
	"context"
	"sort"
	"time"

	"stargazer-ledger/internal/model"
)

// Query returns the stargazers of owner/name first seen within [start, end]. A nil bound
// defaults to today (UTC), so omitting both asks who starred today.
func (s *Service) Query(ctx context.Context, owner, name string, start, end *time.Time) ([]string, error) {
	repo, err := s.Repository(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	today := s.today()
	from, to := today, today
	if start != nil {
		from = model.DateOf(*start)
	}
	if end != nil {
		to = model.DateOf(*end)
	}
	return s.QueryRange(ctx, repo, from, to)
}

type datedBucket struct {
	name string
	date time.Time
}

// QueryRange unions the baseline entries of repo, when start is on or before its registration
// date, with the entries of every dated bucket whose date lies in [start, end]. The baseline
// comes first, then dated buckets in chronological order. Duplicates are kept.
func (s *Service) QueryRange(ctx context.Context, repo model.Repository, start, end time.Time) ([]string, error) {
	buckets, err := s.datedBuckets(ctx)
	if err != nil {
		return nil, err
	}

	usernames := []string{}
	if !start.After(repo.RegisteredDate) {
		entries, err := s.store.FindEntries(ctx, model.BaselineBucket, repo.ID)
		if err != nil {
			return nil, storeErr("find baseline entries", err)
		}
		usernames = append(usernames, model.Usernames(entries)...)
	}

	for _, b := range buckets {
		if b.date.Before(start) || b.date.After(end) {
			continue
		}
		entries, err := s.store.FindEntries(ctx, b.name, repo.ID)
		if err != nil {
			return nil, storeErr("find entries in "+b.name, err)
		}
		usernames = append(usernames, model.Usernames(entries)...)
	}
	return usernames, nil
}

// datedBuckets lists every bucket other than the baseline, sorted by date. Names that are not
// dates are skipped.
func (s *Service) datedBuckets(ctx context.Context) ([]datedBucket, error) {
	names, err := s.store.ListBucketNames(ctx)
	if err != nil {
		return nil, storeErr("list buckets", err)
	}

	buckets := make([]datedBucket, 0, len(names))
	for _, name := range names {
		if name == model.BaselineBucket {
			continue
		}
		d, err := model.ParseDate(name)
		if err != nil {
			s.logger.Warn("Skipping bucket with an unparseable name", "bucket", name, "error", err)
			continue
		}
		buckets = append(buckets, datedBucket{name: name, date: d})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].date.Before(buckets[j].date) })
	return buckets, nil
}
