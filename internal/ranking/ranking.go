// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ranking produces ordered, paginated views of a citation set.
// Every read re-sorts the committed citations it is given, so a view never
// serves an ordering older than the latest commit.
package ranking

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pdiddy/triage-engine/pkg/types"
)

var (
	// ErrOutOfRange is returned when a page number falls outside the page count.
	ErrOutOfRange = errors.New("page out of range")

	// ErrInvalidPageSize is returned for a page size below one.
	ErrInvalidPageSize = errors.New("page size must be positive")
)

// Order selects the score direction of a listing.
type Order string

const (
	Descending Order = "desc"
	Ascending  Order = "asc"
)

// ParseOrder maps "", "desc", and "asc" to an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", string(Descending):
		return Descending, nil
	case string(Ascending):
		return Ascending, nil
	default:
		return "", fmt.Errorf("unsupported sort order %q: use desc or asc", s)
	}
}

// Source supplies the committed citations a view ranks. Implementations
// return a copy the view may reorder.
type Source interface {
	Citations() []types.Citation
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []types.Citation

// Citations implements Source.
func (f SourceFunc) Citations() []types.Citation { return f() }

// View ranks a Source on demand.
type View struct {
	src Source
}

// NewView returns a View over src.
func NewView(src Source) *View {
	return &View{src: src}
}

// Page is one slice of the ranking.
type Page struct {
	Number     int              `json:"page"`
	Size       int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
	TotalItems int              `json:"total_items"`
	Citations  []types.Citation `json:"citations"`
}

// GetPage returns page number (1-based) of the descending ranking.
func (v *View) GetPage(number, size int) (Page, error) {
	return Paginate(v.src.Citations(), number, size)
}

// List returns up to limit citations in the given order; limit <= 0 means all.
func (v *View) List(order Order, limit int) []types.Citation {
	ranked := Sort(v.src.Citations(), order)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// NextBatch returns the first size citations of the descending ranking whose
// ids are not in exclude. The result is never nil.
func (v *View) NextBatch(exclude map[string]bool, size int) []types.Citation {
	batch := []types.Citation{}
	for _, c := range Sort(v.src.Citations(), Descending) {
		if len(batch) >= size {
			break
		}
		if exclude[c.ID] {
			continue
		}
		batch = append(batch, c)
	}
	return batch
}

// Sort orders cs in place by score and returns it. Equal scores are always
// ordered by ascending ingestion index, regardless of order.
func Sort(cs []types.Citation, order Order) []types.Citation {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score != b.Score {
			if order == Ascending {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		return a.IngestionIndex < b.IngestionIndex
	})
	return cs
}

// PageCount returns ceil(total / size).
func PageCount(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate sorts cs descending and cuts out the requested page.
func Paginate(cs []types.Citation, number, size int) (Page, error) {
	if size <= 0 {
		return Page{}, fmt.Errorf("page size %d: %w", size, ErrInvalidPageSize)
	}
	pages := PageCount(len(cs), size)
	if number < 1 || number > pages {
		return Page{}, fmt.Errorf("page %d of %d: %w", number, pages, ErrOutOfRange)
	}

	ranked := Sort(cs, Descending)
	start := (number - 1) * size
	end := start + size
	if end > len(ranked) {
		end = len(ranked)
	}

	return Page{
		Number:     number,
		Size:       size,
		TotalPages: pages,
		TotalItems: len(ranked),
		Citations:  ranked[start:end],
	}, nil
}
