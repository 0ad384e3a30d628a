package ledger

import (
	"stargazer-ledger/internal/model"
)

// PageSize is the upstream listing page size.
const PageSize = 100

// pageCount is the number of pages requested to cover total stargazers.
// It always counts one page past the last full one, so an exact multiple of PageSize
// asks for a trailing page that is expected to be empty.
func pageCount(total int) int {
	return total/PageSize + 1
}

// resumePage is the last page already consumed at oldCount, and whether that page was only
// partially consumed and must be fetched again.
func resumePage(oldCount int) (page int, fractional bool) {
	switch {
	case oldCount == 0:
		return 0, false
	case oldCount%PageSize != 0:
		return oldCount/PageSize + 1, true
	default:
		return oldCount / PageSize, false
	}
}

// window keeps the stargazers of page whose absolute position lies in [from, to).
// Positions before from were already recorded; positions at or past to appeared after the
// total was read and belong to the next cycle.
func window(page int, stargazers []model.Stargazer, from, to int) []model.Stargazer {
	first := (page - 1) * PageSize
	lo := max(from-first, 0)
	hi := min(to-first, len(stargazers))
	if lo >= hi {
		return nil
	}
	return stargazers[lo:hi]
}
