// Package extract pulls prices out of loosely structured pages.
//
// An Extractor runs ordered steps of decreasing specificity. Each step yields
// candidate strings; the first candidate that parses and falls inside the
// step's range wins. Out-of-range candidates are discarded, never clamped.
package extract

import (
	"bytes"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"stockalert/internal/market"
)

// Document wraps a raw payload and parses it as HTML on first use.
type Document struct {
	Body []byte

	once sync.Once
	html *goquery.Document
	text string
}

func NewDocument(body []byte) *Document { return &Document{Body: body} }

func (d *Document) parse() {
	d.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(d.Body))
		if err != nil {
			d.text = string(d.Body)
			return
		}
		d.html = doc
		d.text = visibleText(doc)
	})
}

// HTML returns the parsed document or nil when the payload is not HTML.
func (d *Document) HTML() *goquery.Document {
	d.parse()
	return d.html
}

// Text returns the visible text with runs of whitespace collapsed.
func (d *Document) Text() string {
	d.parse()
	return d.text
}

// Heuristic yields candidate number strings from a document, best first.
type Heuristic interface {
	Name() string
	Candidates(doc *Document) []string
}

// Step binds a heuristic to the range its candidates must fall in.
type Step struct {
	H     Heuristic
	Range market.Range
}

// Extractor runs steps in order.
type Extractor struct {
	Steps []Step
}

// Price returns the first in-range candidate and the name of the heuristic
// that produced it.
func (e Extractor) Price(doc *Document) (decimal.Decimal, string, bool) {
	for _, st := range e.Steps {
		for _, c := range st.H.Candidates(doc) {
			v, ok := ParseNumber(c)
			if !ok {
				continue
			}
			if st.Range.Contains(v) {
				return v, st.H.Name(), true
			}
		}
	}
	return decimal.Zero, "", false
}

var (
	numberRe = regexp.MustCompile(`[-+]?\d[\d,]*(?:\.\d+)?`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ParseNumber reads the first number in s, ignoring thousands separators and
// any surrounding currency marks.
func ParseNumber(s string) (decimal.Decimal, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	m = strings.ReplaceAll(m, ",", "")
	m = strings.TrimPrefix(m, "+")
	v, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// visibleText joins text nodes in document order with spaces so adjacent
// cells do not run together, skipping script and style bodies.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	walkText(doc.Selection, &b)
	return collapseSpace(b.String())
}

func walkText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			b.WriteString(c.Text())
			b.WriteByte(' ')
		case "script", "style", "noscript", "#comment":
		default:
			walkText(c, b)
		}
	})
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
