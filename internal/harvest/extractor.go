package harvest

import (
	"strings"

	herrors "sjsage522/asinharvester/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is one scanned result element that has not been filtered yet
type Candidate struct {
	ID    Identifier
	Title string
	Text  string
	// InResults is true when the element sits inside the sponsored scope containers
	InResults bool
	Selection *goquery.Selection
}

// Extractor harvests candidates from the results root of a document
type Extractor struct {
	sel Selectors
}

// NewExtractor creates an extractor for the given selectors
func NewExtractor(sel Selectors) *Extractor {
	return &Extractor{sel: sel}
}

// Extract returns the valid, visible, deduplicated result candidates in DOM order.
// A document without the results root is an extraction fault.
func (e *Extractor) Extract(view DocumentView) ([]Candidate, error) {
	root := view.Find(e.sel.ResultsRoot).First()
	if root.Length() == 0 {
		return nil, herrors.NewExtraction("extractor", "search results root not found", nil)
	}

	seen := make(map[Identifier]struct{})
	var candidates []Candidate

	root.Find(e.sel.ResultItem).Each(func(_ int, item *goquery.Selection) {
		raw, _ := item.Attr(e.sel.IdentifierAttr)
		id, err := ParseIdentifier(raw)
		if err != nil {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		if rect, known := view.BoundingRect(item); known && !rect.Visible() {
			return
		}
		seen[id] = struct{}{}

		candidates = append(candidates, Candidate{
			ID:        id,
			Title:     e.resolveTitle(item),
			Text:      normalizeSpace(item.Text()),
			InResults: e.sel.SponsoredScope != "" && item.Closest(e.sel.SponsoredScope).Length() > 0,
			Selection: item,
		})
	})

	return candidates, nil
}

// resolveTitle tries the title selectors in priority order and falls back to the full text
func (e *Extractor) resolveTitle(item *goquery.Selection) string {
	for _, selector := range e.sel.Titles {
		var title string
		item.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title = normalizeSpace(s.Text())
			return title == ""
		})
		if title != "" {
			return title
		}
	}
	return normalizeSpace(item.Text())
}

// CountIdentifiers counts the unique valid identifiers anywhere in the document.
// The loader uses it to measure growth while lazy content arrives.
func (e *Extractor) CountIdentifiers(view DocumentView) int {
	seen := make(map[Identifier]struct{})
	view.Find("[" + e.sel.IdentifierAttr + "]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr(e.sel.IdentifierAttr)
		if id, err := ParseIdentifier(raw); err == nil {
			seen[id] = struct{}{}
		}
	})
	return len(seen)
}

// CountItems returns how many result items the results root currently holds
func (e *Extractor) CountItems(view DocumentView) int {
	return view.Find(e.sel.ResultsRoot).First().Find(e.sel.ResultItem).Length()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
