package layout

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFontScale(t *testing.T) {
	tests := []struct {
		in      string
		want    FontScale
		mult    float64
		wantErr bool
	}{
		{in: "small", want: FontSmall, mult: 0.9},
		{in: "Normal", want: FontNormal, mult: 1.0},
		{in: " LARGE ", want: FontLarge, mult: 1.1},
		{in: "", want: FontNormal, mult: 1.0},
		{in: "huge", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFontScale(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, tt.mult, got.Multiplier(), 1e-9)
		})
	}
}

func TestMetricsHeight(t *testing.T) {
	normal := NewMetrics(FontNormal)
	assert.InDelta(t, 40.0, normal.CharsPerLine, 1e-9)
	assert.InDelta(t, 16.0, normal.LineHeight, 1e-9)

	assert.Equal(t, 0.0, normal.Height("", true))
	assert.Equal(t, 0.0, normal.Height("", false))
	// 1 line + 5/40 wrapped share -> 2 lines.
	assert.InDelta(t, 25+2*16+10, normal.Height("hello", true), 1e-9)
	assert.InDelta(t, 2*16+10, normal.Height("hello", false), 1e-9)
	// Two explicit lines + 3/40 -> 3 lines.
	assert.InDelta(t, 3*16+10, normal.Height("a\nb", false), 1e-9)
	// Runes, not bytes: 40 Hangul syllables wrap like 40 ASCII letters.
	assert.Equal(t, normal.Lines(strings.Repeat("a", 40)), normal.Lines(strings.Repeat("가", 40)))

	large := NewMetrics(FontLarge)
	small := NewMetrics(FontSmall)
	text := strings.Repeat("word ", 60)
	assert.Greater(t, large.Height(text, false), normal.Height(text, false))
	assert.Less(t, small.Height(text, false), normal.Height(text, false))

	b := Block{Title: "hello", Description: "a\nb"}
	assert.InDelta(t, normal.Height("hello", true)+normal.Height("a\nb", false), normal.BlockHeight(b), 1e-9)
}

func TestSplit_LineBoundary(t *testing.T) {
	m := NewMetrics(FontNormal)
	b := Block{EventID: "x", Description: "one\ntwo\nthree\nfour"}

	// No title; room for exactly three model lines.
	res, ok := Split(b, m.Margin+3*m.LineHeight, m)
	require.True(t, ok)
	require.True(t, res.HasOverflow)

	assert.Equal(t, "one\ntwo", res.Fitted.Description)
	assert.False(t, res.Fitted.CutMidLine)
	assert.False(t, res.Fitted.Continuation)
	assert.Equal(t, "three\nfour", res.Overflow.Description)
	assert.True(t, res.Overflow.Continuation)
	assert.Equal(t, b.Description, JoinParts([]Block{res.Fitted, res.Overflow}))
}

func TestSplit_MidLineCut(t *testing.T) {
	m := NewMetrics(FontNormal)
	desc := strings.Repeat("가나다라", 50) + "\nsecond line"
	b := Block{EventID: "k", Title: "Title", Description: desc}

	remaining := m.Height("Title", true) + m.Margin + 4*m.LineHeight
	res, ok := Split(b, remaining, m)
	require.True(t, ok)
	require.True(t, res.HasOverflow)

	// 4 lines available, the first line counts 1, so 3*40 characters fit.
	assert.Equal(t, 120, utf8.RuneCountInString(res.Fitted.Description))
	assert.True(t, res.Fitted.CutMidLine)
	assert.True(t, utf8.ValidString(res.Fitted.Description))
	assert.True(t, utf8.ValidString(res.Overflow.Description))
	assert.True(t, strings.HasSuffix(res.Overflow.Description, "\nsecond line"))
	assert.LessOrEqual(t, m.BlockHeight(res.Fitted), remaining)
	assert.Equal(t, desc, JoinParts([]Block{res.Fitted, res.Overflow}))
}

func TestSplit_NothingFits(t *testing.T) {
	m := NewMetrics(FontNormal)

	_, ok := Split(Block{Title: "T", Description: "body"}, 50, m)
	assert.False(t, ok, "title alone exceeds the budget")

	_, ok = Split(Block{Title: "T"}, 500, m)
	assert.False(t, ok, "no description to split")

	// One model line is never enough: any text costs at least two.
	_, ok = Split(Block{Description: "abc"}, m.Margin+m.LineHeight, m)
	assert.False(t, ok)
}

func TestSplit_EverythingFits(t *testing.T) {
	m := NewMetrics(FontNormal)
	b := Block{EventID: "f", Title: "T", Description: "short"}
	res, ok := Split(b, 1000, m)
	require.True(t, ok)
	assert.False(t, res.HasOverflow)
	assert.Equal(t, b, res.Fitted)
}

func TestSplit_TrailingNewlineStaysWithFittedPart(t *testing.T) {
	m := NewMetrics(FontNormal)
	desc := strings.Repeat("a", 20) + "\nbb\n"
	b := Block{EventID: "t", Title: "Meeting", Description: desc}

	// Three lines hold the text; the trailing newline would need a fourth.
	remaining := m.Height("Meeting", true) + m.Margin + 3*m.LineHeight
	require.Greater(t, m.BlockHeight(b), remaining)

	res, ok := Split(b, remaining, m)
	require.True(t, ok)
	assert.False(t, res.HasOverflow, "a blank remainder must not become a continuation")
	assert.Equal(t, strings.Repeat("a", 20)+"\nbb", res.Fitted.Description)
	assert.Equal(t, 1, res.Fitted.TrailingNewlines)
	assert.LessOrEqual(t, m.BlockHeight(res.Fitted), remaining)
	assert.Equal(t, desc, JoinParts([]Block{res.Fitted}))

	pages, err := Allocate([]Block{b}, AllocOptions{Capacity: remaining, MinSplitHeight: 40, Metrics: m})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Blocks, 1)
	assert.False(t, pages[0].Overfull)
	assert.Equal(t, desc, JoinParts(Parts(pages, "t")))
}

func TestSplit_BlankLinesOnlyOverflow(t *testing.T) {
	m := NewMetrics(FontNormal)
	b := Block{EventID: "n", Description: "one\ntwo\n\n\n"}

	res, ok := Split(b, m.Margin+3*m.LineHeight, m)
	require.True(t, ok)
	assert.False(t, res.HasOverflow)
	assert.Equal(t, "one\ntwo", res.Fitted.Description)
	assert.Equal(t, 3, res.Fitted.TrailingNewlines)
	assert.Equal(t, b.Description, JoinParts([]Block{res.Fitted}))
}

func TestJoinParts(t *testing.T) {
	parts := []Block{
		{Description: "abc", CutMidLine: true},
		{Description: "def"},
		{Description: "ghi"},
	}
	assert.Equal(t, "abcdef\nghi", JoinParts(parts))
	assert.Equal(t, "abc\n\n", JoinParts([]Block{{Description: "abc", TrailingNewlines: 2}}))
	assert.Equal(t, "", JoinParts(nil))
}
