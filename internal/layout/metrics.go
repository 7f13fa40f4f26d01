package layout

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// FontScale selects one of the fixed text size presets.
type FontScale string

const (
	FontSmall  FontScale = "small"
	FontNormal FontScale = "normal"
	FontLarge  FontScale = "large"
)

// Base sizes at scale 1.0.
const (
	baseCharsPerLine = 40.0
	baseLineHeight   = 16.0
	titleBase        = 25.0
	blockMargin      = 10.0
)

// ParseFontScale maps a case-insensitive preset name to a FontScale.
// The empty string selects FontNormal.
func ParseFontScale(s string) (FontScale, error) {
	switch FontScale(strings.ToLower(strings.TrimSpace(s))) {
	case "", FontNormal:
		return FontNormal, nil
	case FontSmall:
		return FontSmall, nil
	case FontLarge:
		return FontLarge, nil
	default:
		return "", fmt.Errorf("%w %q (want small, normal or large)", ErrUnknownFontScale, s)
	}
}

// Multiplier returns the size factor for the preset.
func (f FontScale) Multiplier() float64 {
	switch f {
	case FontSmall:
		return 0.9
	case FontLarge:
		return 1.1
	default:
		return 1.0
	}
}

// Metrics is the text measurement model for one rendering pass. It is a
// plain value: build it once per pass and hand it to every height and split
// call so earlier estimates never disagree with later ones.
type Metrics struct {
	Scale        FontScale
	CharsPerLine float64
	LineHeight   float64
	TitleBase    float64
	Margin       float64
}

// NewMetrics derives the measurement model from a font scale.
func NewMetrics(scale FontScale) Metrics {
	m := scale.Multiplier()
	return Metrics{
		Scale:        scale,
		CharsPerLine: baseCharsPerLine / m,
		LineHeight:   baseLineHeight * m,
		TitleBase:    titleBase,
		Margin:       blockMargin,
	}
}

// rawLines is the unrounded visual line count of text: one per explicit
// line plus the wrapped share of its characters.
func (m Metrics) rawLines(text string) float64 {
	return float64(strings.Count(text, "\n")+1) + float64(utf8.RuneCountInString(text))/m.CharsPerLine
}

// Lines is the rounded visual line count used by Height.
func (m Metrics) Lines(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(m.rawLines(text)))
}

// Height estimates the rendered height of text. Empty text has no height.
func (m Metrics) Height(text string, isTitle bool) float64 {
	if text == "" {
		return 0
	}
	h := float64(m.Lines(text))*m.LineHeight + m.Margin
	if isTitle {
		h += m.TitleBase
	}
	return h
}

// BlockHeight is the estimated height of a block's title plus description.
func (m Metrics) BlockHeight(b Block) float64 {
	return m.Height(b.Title, true) + m.Height(b.Description, false)
}
