package layout

import (
	list "github.com/bahlo/generic-list-go"
)

// Page is an immutable run of blocks whose estimated heights sum to at most
// the configured capacity. Overfull marks the single-block fallback page
// produced when a block cannot be shrunk to fit even an empty page.
type Page struct {
	Number   int     `json:"number"`
	Blocks   []Block `json:"blocks"`
	Height   float64 `json:"height"`
	Overfull bool    `json:"overfull,omitempty"`
}

// AllocOptions configures one allocation pass.
type AllocOptions struct {
	// Capacity is the height budget of one page.
	Capacity float64
	// MinSplitHeight is the smallest leftover space worth splitting into;
	// below it the page is closed and the block moves on.
	MinSplitHeight float64
	Metrics        Metrics
}

// Validate rejects options no page could be allocated with.
func (o AllocOptions) Validate() error {
	if o.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if o.MinSplitHeight < 0 {
		return ErrInvalidMinSplitHeight
	}
	return nil
}

// Allocate flows blocks across pages in order. A block that does not fit is
// split when enough room is left, its overflow re-queued at the front as a
// continuation; otherwise the page is closed and the block retried on a
// fresh one.
func Allocate(blocks []Block, opts AllocOptions) ([]Page, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	queue := list.New[Block]()
	for _, b := range blocks {
		queue.PushBack(b)
	}

	var (
		pages   []Page
		current []Block
		height  float64
	)
	closePage := func(overfull bool) {
		if len(current) == 0 {
			return
		}
		pages = append(pages, Page{
			Number:   len(pages) + 1,
			Blocks:   current,
			Height:   height,
			Overfull: overfull,
		})
		current = nil
		height = 0
	}

	for queue.Len() > 0 {
		b := queue.Remove(queue.Front())
		h := opts.Metrics.BlockHeight(b)

		if height+h <= opts.Capacity {
			current = append(current, b)
			height += h
			continue
		}

		remaining := opts.Capacity - height
		if remaining > opts.MinSplitHeight {
			if res, ok := Split(b, remaining, opts.Metrics); ok {
				current = append(current, res.Fitted)
				height += opts.Metrics.BlockHeight(res.Fitted)
				closePage(false)
				if res.HasOverflow {
					queue.PushFront(res.Overflow)
				}
				continue
			}
		}

		if len(current) == 0 {
			// Not even an empty page helps: give the block a page of its own.
			current = append(current, b)
			height = h
			closePage(true)
			continue
		}

		closePage(false)
		queue.PushFront(b)
	}
	closePage(false)

	if pages == nil {
		pages = []Page{}
	}
	return pages, nil
}

// Parts collects the parts of one event's block across pages, in order.
func Parts(pages []Page, eventID string) []Block {
	var out []Block
	for _, p := range pages {
		for _, b := range p.Blocks {
			if b.EventID == eventID {
				out = append(out, b)
			}
		}
	}
	return out
}
