package service

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// DefaultBoundaryGuard is the distance past the end of a just-opened wrap region
// within which a same-tag boundary marker is suppressed.
const DefaultBoundaryGuard = 2

type markupEventKind int

const (
	eventClose markupEventKind = iota
	eventOpen
	eventBoundary
)

type markupEvent struct {
	offset   uint32
	kind     markupEventKind
	region   int
	priority int
	category int
	start    uint32
	end      uint32
}

// RenderMarkup merges regions into src in a single pass over an offset-sorted event list.
//
// Delete regions elide their bytes. Wrap regions are surrounded by <tag> and </tag>.
// Boundary regions insert <tag></tag> at their start only when the start lies strictly
// beyond guard bytes past the end of the most recently opened wrap region with the
// same tag. A zero-width wrap marks a scope opening at one offset.
// Wrap and boundary regions starting inside a deleted range are dropped.
//
// At one offset closing tags come first, innermost first; opening and boundary tags
// follow ordered by category priority, then category index, then the region end
// (outer first). The returned regions are the ones that produced output, in emission order.
func RenderMarkup(
	src []byte,
	categories []valueobject.MarkupCategory,
	regions []valueobject.AnnotatedRegion,
	guard uint32,
) ([]byte, []valueobject.AnnotatedRegion, error) {
	for _, r := range regions {
		if r.Category < 0 || r.Category >= len(categories) {
			return nil, nil, fmt.Errorf("region references unknown category %d", r.Category)
		}
		if r.Start > r.End || int(r.End) > len(src) {
			return nil, nil, fmt.Errorf("region [%d,%d) of %q outside source of %d bytes",
				r.Start, r.End, categories[r.Category].Tag, len(src))
		}
	}

	deleted := mergeDeleteRanges(regions)
	var emitted []valueobject.AnnotatedRegion
	for _, r := range regions {
		if r.Kind == valueobject.CategoryDelete && r.End > r.Start {
			emitted = append(emitted, r)
		}
	}

	events := buildMarkupEvents(categories, regions, deleted)

	var out bytes.Buffer
	out.Grow(len(src) + len(events)*8)

	anchors := make(map[string]uint32)
	pos := uint32(0)
	cursor := 0
	writeKept := func(to uint32) {
		for pos < to {
			for cursor < len(deleted) && deleted[cursor].end <= pos {
				cursor++
			}
			if cursor < len(deleted) && deleted[cursor].start <= pos {
				pos = min(deleted[cursor].end, to)
				continue
			}
			next := to
			if cursor < len(deleted) && deleted[cursor].start < to {
				next = deleted[cursor].start
			}
			out.Write(src[pos:next])
			pos = next
		}
	}

	opened := make(map[int]bool)
	for _, ev := range events {
		writeKept(ev.offset)
		region := regions[ev.region]
		category := categories[region.Category]

		switch ev.kind {
		case eventClose:
			if opened[ev.region] {
				out.WriteString(category.CloseTag())
			}
		case eventOpen:
			opened[ev.region] = true
			anchors[category.Tag] = region.End
			out.WriteString(category.OpenTag())
			if region.End == region.Start {
				out.WriteString(category.CloseTag())
			}
			emitted = append(emitted, region)
		case eventBoundary:
			if anchor, ok := anchors[category.Tag]; ok && region.Start <= anchor+guard {
				continue
			}
			out.WriteString(category.OpenTag())
			out.WriteString(category.CloseTag())
			emitted = append(emitted, region)
		}
	}
	writeKept(uint32(len(src)))

	return out.Bytes(), emitted, nil
}

type byteRange struct {
	start, end uint32
}

// mergeDeleteRanges returns the union of non-empty delete regions, sorted.
func mergeDeleteRanges(regions []valueobject.AnnotatedRegion) []byteRange {
	var ranges []byteRange
	for _, r := range regions {
		if r.Kind == valueobject.CategoryDelete && r.End > r.Start {
			ranges = append(ranges, byteRange{r.Start, r.End})
		}
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].start != ranges[j].start {
			return ranges[i].start < ranges[j].start
		}
		return ranges[i].end > ranges[j].end
	})

	merged := ranges[:0]
	for _, r := range ranges {
		if n := len(merged); n > 0 && r.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, r.end)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func insideDeleted(deleted []byteRange, offset uint32) bool {
	i := sort.Search(len(deleted), func(i int) bool { return deleted[i].end > offset })
	return i < len(deleted) && deleted[i].start <= offset
}

func buildMarkupEvents(
	categories []valueobject.MarkupCategory,
	regions []valueobject.AnnotatedRegion,
	deleted []byteRange,
) []markupEvent {
	events := make([]markupEvent, 0, 2*len(regions))
	for i, r := range regions {
		if r.Kind == valueobject.CategoryDelete || insideDeleted(deleted, r.Start) {
			continue
		}
		base := markupEvent{
			region:   i,
			priority: categories[r.Category].Priority,
			category: r.Category,
			start:    r.Start,
			end:      r.End,
		}
		switch r.Kind {
		case valueobject.CategoryWrap:
			open := base
			open.offset, open.kind = r.Start, eventOpen
			events = append(events, open)
			if r.End > r.Start {
				closing := base
				closing.offset, closing.kind = r.End, eventClose
				events = append(events, closing)
			}
		case valueobject.CategoryBoundary:
			boundary := base
			boundary.offset, boundary.kind = r.Start, eventBoundary
			events = append(events, boundary)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.offset != b.offset {
			return a.offset < b.offset
		}
		if (a.kind == eventClose) != (b.kind == eventClose) {
			return a.kind == eventClose
		}
		if a.kind == eventClose {
			// innermost first: the later opener closes first
			if a.start != b.start {
				return a.start > b.start
			}
			if a.priority != b.priority {
				return a.priority > b.priority
			}
			if a.category != b.category {
				return a.category > b.category
			}
			return a.region > b.region
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.category != b.category {
			return a.category < b.category
		}
		if a.end != b.end {
			return a.end > b.end
		}
		return a.region < b.region
	})
	return events
}
