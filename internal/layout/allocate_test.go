package layout

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultOpts() AllocOptions {
	return AllocOptions{Capacity: 980, MinSplitHeight: 40, Metrics: NewMetrics(FontNormal)}
}

func TestAllocate_SplitsOversizedBlockAcrossTwoPages(t *testing.T) {
	m := NewMetrics(FontNormal)
	desc := strings.Repeat("a", 2760)
	b := Block{EventID: "e1", Title: "Meeting", Description: desc}
	require.InDelta(t, 1200.0, m.BlockHeight(b), 5, "fixture should be roughly 1200 high")

	pages, err := Allocate([]Block{b}, defaultOpts())
	require.NoError(t, err)
	require.Len(t, pages, 2)

	first, second := pages[0].Blocks, pages[1].Blocks
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.False(t, first[0].Continuation)
	assert.True(t, second[0].Continuation)
	assert.Equal(t, "Meeting", second[0].Title)

	assert.Equal(t, 2200, len(first[0].Description))
	assert.LessOrEqual(t, pages[0].Height, 980.0)
	assert.Equal(t, desc, JoinParts(Parts(pages, "e1")))
}

func TestAllocate_ZeroCapacityFails(t *testing.T) {
	opts := defaultOpts()
	opts.Capacity = 0
	pages, err := Allocate([]Block{{Title: "x"}}, opts)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.Nil(t, pages)

	opts = defaultOpts()
	opts.MinSplitHeight = -1
	_, err = Allocate(nil, opts)
	assert.ErrorIs(t, err, ErrInvalidMinSplitHeight)
}

func TestAllocate_Empty(t *testing.T) {
	pages, err := Allocate(nil, defaultOpts())
	require.NoError(t, err)
	assert.NotNil(t, pages)
	assert.Empty(t, pages)
}

func TestAllocate_SmallBlocksShareAPage(t *testing.T) {
	blocks := []Block{
		{EventID: "a", Title: "A", Description: "first"},
		{EventID: "b", Title: "B"},
		{EventID: "c", Title: "C", Description: "third\nline"},
	}
	pages, err := Allocate(blocks, defaultOpts())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Len(t, pages[0].Blocks, 3)
	assert.Equal(t, 1, pages[0].Number)

	m := NewMetrics(FontNormal)
	var sum float64
	for _, b := range blocks {
		sum += m.BlockHeight(b)
	}
	assert.InDelta(t, sum, pages[0].Height, 1e-9)
}

func TestAllocate_SmallRemainderMovesBlockWhole(t *testing.T) {
	m := NewMetrics(FontNormal)
	big := Block{EventID: "big", Title: "A", Description: strings.Repeat("x", 2160)}
	small := Block{EventID: "small", Title: "B", Description: "hello"}
	require.InDelta(t, 957.0, m.BlockHeight(big), 1e-9)

	pages, err := Allocate([]Block{big, small}, defaultOpts())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, []Block{big}, pages[0].Blocks)
	assert.Equal(t, []Block{small}, pages[1].Blocks)
	assert.False(t, pages[1].Blocks[0].Continuation)
}

func TestAllocate_UnsplittableBlockDeferred(t *testing.T) {
	m := NewMetrics(FontNormal)
	filler := Block{EventID: "filler", Title: "F", Description: strings.Repeat("x", 1600)}
	titleOnly := Block{EventID: "t", Title: strings.Repeat("T", 600)}
	require.Greater(t, 980-m.BlockHeight(filler), 40.0)
	require.Greater(t, m.BlockHeight(filler)+m.BlockHeight(titleOnly), 980.0)

	pages, err := Allocate([]Block{filler, titleOnly}, defaultOpts())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "t", pages[1].Blocks[0].EventID)
	assert.False(t, pages[1].Overfull)
}

func TestAllocate_OverfullFallback(t *testing.T) {
	opts := AllocOptions{Capacity: 100, MinSplitHeight: 10, Metrics: NewMetrics(FontNormal)}
	small := Block{EventID: "s", Title: "ok"}
	huge := Block{EventID: "h", Title: strings.Repeat("T", 400)}
	after := Block{EventID: "a", Title: "next"}

	pages, err := Allocate([]Block{small, huge, after}, opts)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "s", pages[0].Blocks[0].EventID)
	assert.False(t, pages[0].Overfull)

	require.Len(t, pages[1].Blocks, 1)
	assert.Equal(t, "h", pages[1].Blocks[0].EventID)
	assert.True(t, pages[1].Overfull)
	assert.Greater(t, pages[1].Height, opts.Capacity)

	assert.Equal(t, "a", pages[2].Blocks[0].EventID)
}

func TestAllocate_ManyContinuations(t *testing.T) {
	opts := AllocOptions{Capacity: 300, MinSplitHeight: 40, Metrics: NewMetrics(FontLarge)}
	var lines []string
	for i := 0; i < 120; i++ {
		lines = append(lines, fmt.Sprintf("line %d: %s", i, strings.Repeat("내용", i%30)))
	}
	desc := strings.Join(lines, "\n")
	pages, err := Allocate([]Block{{EventID: "long", Title: "Diary", Description: desc}}, opts)
	require.NoError(t, err)
	require.Greater(t, len(pages), 3)

	parts := Parts(pages, "long")
	assert.Equal(t, desc, JoinParts(parts))
	for i, p := range parts {
		assert.Equal(t, i > 0, p.Continuation, "part %d", i)
		assert.True(t, utf8.ValidString(p.Description))
	}
}

func randomText(r *rand.Rand) string {
	alphabet := []rune("abc de가나다 라마\n")
	n := r.Intn(1500)
	out := make([]rune, n)
	for i := range out {
		out[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(out)
}

func TestAllocate_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	scales := []FontScale{FontSmall, FontNormal, FontLarge}

	for round := 0; round < 40; round++ {
		opts := AllocOptions{
			Capacity:       float64(200 + r.Intn(900)),
			MinSplitHeight: 40,
			Metrics:        NewMetrics(scales[round%len(scales)]),
		}
		var blocks []Block
		n := 1 + r.Intn(12)
		for i := 0; i < n; i++ {
			blocks = append(blocks, Block{
				EventID:     fmt.Sprintf("b%d", i),
				Title:       fmt.Sprintf("Event %d", i),
				Description: randomText(r),
			})
		}

		pages, err := Allocate(blocks, opts)
		require.NoError(t, err)

		for _, p := range pages {
			require.NotEmpty(t, p.Blocks)
			var sum float64
			for _, b := range p.Blocks {
				sum += opts.Metrics.BlockHeight(b)
			}
			assert.InDelta(t, sum, p.Height, 1e-6)
			if p.Overfull {
				assert.Len(t, p.Blocks, 1)
				continue
			}
			assert.LessOrEqual(t, p.Height, opts.Capacity, "round %d page %d", round, p.Number)
		}

		for _, b := range blocks {
			parts := Parts(pages, b.EventID)
			require.NotEmpty(t, parts, "block %s dropped", b.EventID)
			assert.Equal(t, b.Description, JoinParts(parts), "block %s text changed", b.EventID)
		}
	}
}
