package harvest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Attributes the browser driver stamps on result items with their rendered size
const (
	RectWidthAttr  = "data-harvest-width"
	RectHeightAttr = "data-harvest-height"
)

// Rect is the rendered size of an element
type Rect struct {
	Width  float64
	Height float64
}

// Visible reports whether the element occupies any rendered area
func (r Rect) Visible() bool {
	return r.Width > 0 && r.Height > 0
}

// DocumentView is a read-only view of the currently loaded page
type DocumentView interface {
	// Find returns every element matching selector, in document order
	Find(selector string) *goquery.Selection

	// BoundingRect returns the rendered size of the first element in s.
	// The bool is false when the view has no layout information for it.
	BoundingRect(s *goquery.Selection) (Rect, bool)

	// Text returns the full text content of the page body
	Text() string
}

// Driver controls the page a collection runs against
type Driver interface {
	// Snapshot captures the current document state
	Snapshot(ctx context.Context) (DocumentView, error)

	// ScrollToBottom scrolls to the end of the page to trigger lazy loading
	ScrollToBottom(ctx context.Context) error

	// ScrollToTop scrolls back to the start of the page
	ScrollToTop(ctx context.Context) error

	// Click clicks the first element matching selector and reports whether one existed
	Click(ctx context.Context, selector string) (bool, error)
}

// Highlighter is implemented by drivers that can mark accepted results on the page
type Highlighter interface {
	Highlight(ctx context.Context, ids []string) error
	ClearHighlighting(ctx context.Context) error
}

// Snapshot is a DocumentView over parsed HTML. Geometry comes from the
// RectWidthAttr/RectHeightAttr attributes when present.
type Snapshot struct {
	doc *goquery.Document
}

// NewSnapshot parses an HTML document
func NewSnapshot(r io.Reader) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("HTML parse error: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

// SnapshotFromHTML parses an HTML string
func SnapshotFromHTML(html string) (*Snapshot, error) {
	return NewSnapshot(strings.NewReader(html))
}

// SnapshotFromDocument wraps an already parsed document
func SnapshotFromDocument(doc *goquery.Document) *Snapshot {
	return &Snapshot{doc: doc}
}

// Document returns the underlying goquery document
func (s *Snapshot) Document() *goquery.Document {
	return s.doc
}

// Find implements DocumentView
func (s *Snapshot) Find(selector string) *goquery.Selection {
	return s.doc.Find(selector)
}

// BoundingRect implements DocumentView
func (s *Snapshot) BoundingRect(sel *goquery.Selection) (Rect, bool) {
	first := sel.First()
	w, okW := first.Attr(RectWidthAttr)
	h, okH := first.Attr(RectHeightAttr)
	if !okW || !okH {
		return Rect{}, false
	}
	width, errW := strconv.ParseFloat(strings.TrimSpace(w), 64)
	height, errH := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if errW != nil || errH != nil {
		return Rect{}, true
	}
	return Rect{Width: width, Height: height}, true
}

// Text implements DocumentView
func (s *Snapshot) Text() string {
	body := s.doc.Find("body")
	if body.Length() == 0 {
		return s.doc.Text()
	}
	return body.Text()
}
