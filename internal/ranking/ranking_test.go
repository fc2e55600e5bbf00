// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/triage-engine/pkg/types"
)

func citations(scores ...float64) []types.Citation {
	cs := make([]types.Citation, len(scores))
	for i, s := range scores {
		cs[i] = types.Citation{ID: fmt.Sprintf("c%d", i), IngestionIndex: i, Score: s}
	}
	return cs
}

func ids(cs []types.Citation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func staticView(cs []types.Citation) *View {
	return NewView(SourceFunc(func() []types.Citation {
		return append([]types.Citation(nil), cs...)
	}))
}

func TestSortTieBreak(t *testing.T) {
	cs := citations(0.5, 0.9, 0.5, 0.1, 0.9)

	assert.Equal(t, []string{"c1", "c4", "c0", "c2", "c3"}, ids(Sort(append([]types.Citation(nil), cs...), Descending)))
	assert.Equal(t, []string{"c3", "c0", "c2", "c1", "c4"}, ids(Sort(append([]types.Citation(nil), cs...), Ascending)))
}

func TestSortIgnoresInputOrder(t *testing.T) {
	cs := citations(0.5, 0.5, 0.5, 0.5)
	reversed := []types.Citation{cs[3], cs[2], cs[1], cs[0]}
	assert.Equal(t, []string{"c0", "c1", "c2", "c3"}, ids(Sort(reversed, Descending)))
}

func TestGetPage(t *testing.T) {
	// Twelve citations with distinct descending scores: ranking == ingestion order.
	scores := make([]float64, 12)
	for i := range scores {
		scores[i] = 1 - float64(i)/20
	}
	v := staticView(citations(scores...))

	tests := []struct {
		name      string
		number    int
		size      int
		wantIDs   []string
		wantPages int
		wantErr   error
	}{
		{"first page", 1, 5, []string{"c0", "c1", "c2", "c3", "c4"}, 3, nil},
		{"last partial page", 3, 5, []string{"c10", "c11"}, 3, nil},
		{"exact fit", 2, 6, []string{"c6", "c7", "c8", "c9", "c10", "c11"}, 2, nil},
		{"beyond page count", 4, 5, nil, 0, ErrOutOfRange},
		{"page zero", 0, 5, nil, 0, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.GetPage(tt.number, tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids(p.Citations))
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, 12, p.TotalItems)
		})
	}
}

func TestGetPageInvalidSize(t *testing.T) {
	_, err := staticView(citations(0.5)).GetPage(1, 0)
	require.ErrorIs(t, err, ErrInvalidPageSize)
	assert.NotErrorIs(t, err, ErrOutOfRange)

	_, err = staticView(citations(0.5)).GetPage(1, -3)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestGetPageEmpty(t *testing.T) {
	_, err := staticView(nil).GetPage(1, 5)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRepeatedReadsAreStable(t *testing.T) {
	v := staticView(citations(0.5, 0.5, 0.7, 0.5, 0.7, 0.5))
	first, err := v.GetPage(1, 4)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := v.GetPage(1, 4)
		require.NoError(t, err)
		assert.Equal(t, ids(first.Citations), ids(again.Citations))
	}
	assert.Equal(t, []string{"c2", "c4", "c0", "c1"}, ids(first.Citations))
}

func TestViewReflectsLatestSource(t *testing.T) {
	cs := citations(0.1, 0.9)
	v := NewView(SourceFunc(func() []types.Citation { return append([]types.Citation(nil), cs...) }))

	p, err := v.GetPage(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "c1", p.Citations[0].ID)

	cs[0].Score = 1.0
	p, err = v.GetPage(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "c0", p.Citations[0].ID)
}

func TestList(t *testing.T) {
	v := staticView(citations(0.2, 0.8, 0.5))
	assert.Equal(t, []string{"c1", "c2", "c0"}, ids(v.List(Descending, 0)))
	assert.Equal(t, []string{"c0", "c2"}, ids(v.List(Ascending, 2)))
}

func TestNextBatch(t *testing.T) {
	v := staticView(citations(0.2, 0.8, 0.5, 0.9, 0.1))
	got := v.NextBatch(map[string]bool{"c3": true, "c2": true}, 2)
	assert.Equal(t, []string{"c1", "c0"}, ids(got))
	assert.Len(t, v.NextBatch(nil, 10), 5)

	empty := v.NextBatch(nil, 0)
	require.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.NotNil(t, staticView(nil).NextBatch(nil, 3))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, Descending, o)
	o, err = ParseOrder("asc")
	require.NoError(t, err)
	assert.Equal(t, Ascending, o)
	_, err = ParseOrder("random")
	assert.Error(t, err)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 3, PageCount(12, 5))
	assert.Equal(t, 2, PageCount(10, 5))
	assert.Equal(t, 0, PageCount(0, 5))
	assert.Equal(t, 0, PageCount(5, 0))
}
