// Package render turns a laid-out book into a printable HTML document: one
// timeline page per day followed by that day's text pages.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/muesli/reflow/wrap"

	"daybook/internal/layout"
	"daybook/internal/model"
	"daybook/internal/schedule"
)

// Timeline geometry in CSS pixels.
const (
	ColumnHeight = 880
	TopOffset    = 10
	PixelsPerMin = float64(ColumnHeight) / model.MinutesPerDay

	// breakEvery is how many display cells may run without a soft break.
	breakEvery = 15

	fallbackColor = "#cccccc"
)

//go:embed templates/book.html.tmpl
var bookTemplate string

var tmpl = template.Must(template.New("book").Parse(bookTemplate))

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

type fonts struct {
	Body, Meta, Title template.CSS
}

type geometry struct {
	PageHeight   int
	ColumnHeight int
}

type document struct {
	Title    string
	Fonts    fonts
	Geometry geometry
	Days     []dayView
}

type dayView struct {
	ISODate string
	Label   string
	Legend  []legendView
	Hours   []hourView
	Boxes   []boxView
	Pages   []pageView
}

type legendView struct {
	Name   string
	Swatch template.CSS
}

type hourView struct {
	Hour       int
	Major      bool
	LineStyle  template.CSS
	LabelStyle template.CSS
}

type boxView struct {
	Title string
	Style template.CSS
}

type pageView struct {
	Number int
	Items  []itemView
}

type itemView struct {
	AllDay       bool
	Continuation bool
	Title        string
	Calendar     string
	TimeRange    string
	Duration     string
	Lines        [][]string
	Ink          template.CSS
	Border       template.CSS
}

// HTML writes the document for book. Days without events are skipped.
func HTML(w io.Writer, book *schedule.Book) error {
	if book == nil {
		return fmt.Errorf("render: nil book")
	}
	doc := build(book)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func build(book *schedule.Book) document {
	mult := book.FontScale.Multiplier()
	doc := document{
		Title: "Daybook " + book.From.Format(time.DateOnly) + " - " + book.To.Format(time.DateOnly),
		Fonts: fonts{
			Body:  points(8.5 * mult),
			Meta:  points(7.5 * mult),
			Title: points(10 * mult),
		},
		Geometry: geometry{PageHeight: ColumnHeight + 2*TopOffset, ColumnHeight: ColumnHeight},
	}

	hours := hourLines()
	for _, dl := range book.Days {
		if dl.Day.Empty() {
			continue
		}
		dv := dayView{
			ISODate: dl.Day.Date.Format(time.DateOnly),
			Label:   dl.Day.Date.Format("2006-01-02 (Mon)"),
			Hours:   hours,
		}
		for _, c := range dl.Legend {
			dv.Legend = append(dv.Legend, legendView{
				Name:   c.Name,
				Swatch: template.CSS("background-color:" + safeColor(c.Color)),
			})
		}
		for _, p := range dl.Placements {
			dv.Boxes = append(dv.Boxes, box(p, mult))
		}
		for _, pg := range dl.Pages {
			dv.Pages = append(dv.Pages, page(pg))
		}
		doc.Days = append(doc.Days, dv)
	}
	return doc
}

func hourLines() []hourView {
	out := make([]hourView, 0, 25)
	for h := 0; h <= 24; h++ {
		top := float64(h*60)*PixelsPerMin + TopOffset
		labelTop := top - 7
		if h == 24 {
			labelTop = top - 10
		}
		out = append(out, hourView{
			Hour:       h,
			Major:      h%3 == 0,
			LineStyle:  template.CSS("top:" + px(top)),
			LabelStyle: template.CSS("top:" + px(labelTop)),
		})
	}
	return out
}

// box positions one placement inside the timeline column. The left tenth
// of the column is reserved for the hour labels.
func box(p layout.Placement, mult float64) boxView {
	width, left := 90.0, 10.0
	if p.Width < 100 {
		width = p.Width * 0.9
		left = p.Left*0.9 + 10
	}
	top := float64(p.VisualStart)*PixelsPerMin + TopOffset
	height := float64(p.VisualDuration) * PixelsPerMin

	var size float64
	var lineHeight string
	switch {
	case p.VisualDuration < 20:
		size, lineHeight = 5, "1.0"
	case p.VisualDuration < 40:
		size, lineHeight = 6.5, "1.1"
	default:
		size, lineHeight = 8.5, "1.2"
	}

	color := safeColor(p.Event.Color)
	style := "top:" + px(top) +
		";height:" + px(height) +
		";left:" + pct(left) +
		";width:" + pct(width) +
		";background-color:" + translucent(color) +
		";border-left:3px solid " + color +
		";font-size:" + string(points(size*mult)) +
		";line-height:" + lineHeight
	return boxView{Title: p.Event.Title, Style: template.CSS(style)}
}

func page(pg layout.Page) pageView {
	pv := pageView{Number: pg.Number}
	for _, b := range pg.Blocks {
		color := safeColor(b.Color)
		pv.Items = append(pv.Items, itemView{
			AllDay:       b.Kind == layout.KindAllDay,
			Continuation: b.Continuation,
			Title:        b.Title,
			Calendar:     b.Meta.Calendar,
			TimeRange:    b.Meta.TimeRange,
			Duration:     b.Meta.Duration,
			Lines:        SoftBreaks(b.Description, breakEvery),
			Ink:          template.CSS("color:" + color),
			Border:       template.CSS("border-color:" + color),
		})
	}
	return pv
}

// SoftBreaks splits text into lines and every line into chunks at most n
// display cells wide (wide CJK runes count as two), so long unbroken words
// can wrap between chunks.
func SoftBreaks(text string, n int) [][]string {
	if text == "" {
		return nil
	}
	if n <= 0 {
		n = breakEvery
	}
	var out [][]string
	for _, line := range strings.Split(text, "\n") {
		w := wrap.NewWriter(n)
		w.PreserveSpace = true
		_, _ = w.Write([]byte(line))
		out = append(out, strings.Split(w.String(), "\n"))
	}
	return out
}

// safeColor only lets hex colors through to the stylesheet.
func safeColor(c string) string {
	if colorRe.MatchString(c) {
		return c
	}
	return fallbackColor
}

// translucent adds a 25% alpha channel to a #rgb or #rrggbb color.
func translucent(c string) string {
	switch len(c) {
	case 4:
		return "#" + string([]byte{c[1], c[1], c[2], c[2], c[3], c[3]}) + "40"
	case 7:
		return c + "40"
	default:
		return c
	}
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "px"
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64) + "%"
}

func points(v float64) template.CSS {
	return template.CSS(strconv.FormatFloat(v, 'f', 2, 64) + "pt")
}
