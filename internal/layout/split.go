package layout

import (
	"math"
	"strings"
)

// Kind distinguishes all-day entries from timed ones in the text pages.
type Kind string

const (
	KindAllDay Kind = "allday"
	KindTimed  Kind = "timed"
)

// Meta is the one-line header printed above a timed block's title.
type Meta struct {
	Calendar  string `json:"calendar"`
	TimeRange string `json:"time_range,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Block is one event's text as it flows through the pages. A block split
// across pages yields a fitted part and one or more continuation parts that
// share EventID.
type Block struct {
	EventID     string `json:"event_id"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Meta        Meta   `json:"meta"`
	Description string `json:"description"`
	Color       string `json:"color"`

	// Continuation marks every part after the first.
	Continuation bool `json:"continuation"`

	// CutMidLine is set on a part whose text was cut inside a line, so the
	// next part continues that same line.
	CutMidLine bool `json:"cut_mid_line,omitempty"`

	// TrailingNewlines counts blank lines dropped from the end of the last
	// part because they would have formed an empty continuation.
	TrailingNewlines int `json:"trailing_newlines,omitempty"`
}

// SplitResult holds the two halves of a split block.
type SplitResult struct {
	Fitted      Block
	Overflow    Block
	HasOverflow bool
}

// Split cuts b's description so that the fitted part's estimated height is
// at most remaining. The budget is converted into a line count; whole lines
// are taken while they fit and the first line that does not is cut at
// floor(linesLeft * CharsPerLine) characters.
//
// ok is false when not a single character fits.
func Split(b Block, remaining float64, m Metrics) (SplitResult, bool) {
	if b.Description == "" {
		return SplitResult{}, false
	}

	budget := remaining - m.Height(b.Title, true)
	maxLines := int(math.Floor((budget - m.Margin) / m.LineHeight))
	if maxLines <= 0 {
		return SplitResult{}, false
	}

	lines := strings.Split(b.Description, "\n")
	var (
		fit      []string
		overflow []string
		midLine  bool
	)
	for i, line := range lines {
		candidate := append(fit[:len(fit):len(fit)], line)
		if m.Lines(strings.Join(candidate, "\n")) <= maxLines {
			fit = candidate
			continue
		}

		prefix := ""
		if len(fit) > 0 {
			prefix = strings.Join(fit, "\n") + "\n"
		}
		runes := []rune(line)
		cut := m.cutPoint(prefix, runes, maxLines)
		if cut > 0 {
			fit = append(fit, string(runes[:cut]))
			overflow = append([]string{string(runes[cut:])}, lines[i+1:]...)
			midLine = true
		} else {
			overflow = lines[i:]
		}
		break
	}

	fitted := strings.Join(fit, "\n")
	if fitted == "" {
		return SplitResult{}, false
	}

	res := SplitResult{Fitted: b}
	res.Fitted.Description = fitted
	if overflow == nil {
		return res, true
	}
	if strings.Join(overflow, "") == "" {
		// Only blank lines are left over. They stay with the fitted part as
		// a count instead of opening a continuation with nothing to show.
		res.Fitted.TrailingNewlines += len(overflow)
		return res, true
	}
	// b's own CutMidLine stays with its last part, the overflow.
	res.Fitted.CutMidLine = midLine
	res.HasOverflow = true
	res.Overflow = b
	res.Overflow.Description = strings.Join(overflow, "\n")
	res.Overflow.Continuation = true
	return res, true
}

// cutPoint returns how many runes of line can follow prefix while staying
// within maxLines. Only the characters of the partial line are wrapped, so
// linesLeft is exactly what the prefix leaves unused.
func (m Metrics) cutPoint(prefix string, line []rune, maxLines int) int {
	linesLeft := float64(maxLines) - m.rawLines(prefix)
	if linesLeft <= 0 {
		return 0
	}
	cut := int(math.Floor(linesLeft * m.CharsPerLine))
	if cut >= len(line) {
		cut = len(line) - 1
	}
	// Guard against float rounding at the boundary.
	for cut > 0 && m.Lines(prefix+string(line[:cut])) > maxLines {
		cut--
	}
	if cut < 0 {
		return 0
	}
	return cut
}

// JoinParts reassembles the description of a block from its parts in page
// order. It is the inverse of repeated Split calls.
func JoinParts(parts []Block) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 && !parts[i-1].CutMidLine {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.Description)
		sb.WriteString(strings.Repeat("\n", p.TrailingNewlines))
	}
	return sb.String()
}
