package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"stockalert/internal/market"
)

// Selector reads the text of CSS-selected elements.
type Selector struct {
	Selectors []string
}

func (Selector) Name() string { return "selector" }

func (s Selector) Candidates(doc *Document) []string {
	html := doc.HTML()
	if html == nil {
		return nil
	}
	var out []string
	for _, sel := range s.Selectors {
		html.Find(sel).Each(func(_ int, el *goquery.Selection) {
			if t := strings.TrimSpace(el.Text()); t != "" {
				out = append(out, t)
			}
		})
	}
	return out
}

// Context finds numbers that follow a keyword within a short window of text.
type Context struct {
	Keywords []string
	// Window is the number of non-digit characters allowed between the
	// keyword and the number. Zero means 20.
	Window int
}

func (Context) Name() string { return "context" }

func (c Context) Candidates(doc *Document) []string {
	text := doc.Text()
	w := c.Window
	if w <= 0 {
		w = 20
	}
	var out []string
	for _, kw := range c.Keywords {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(kw) + `[^0-9]{0,` + strconv.Itoa(w) + `}?(\d[\d,]*(?:\.\d+)?)`)
		if err != nil {
			continue
		}
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
	}
	return out
}

// Permissive scans the whole text for anything shaped like a price.
type Permissive struct {
	// Pattern defaults to DefaultPermissive.
	Pattern *regexp.Regexp
}

// DefaultPermissive matches decimals such as 123.45 or 1234.56.
var DefaultPermissive = regexp.MustCompile(`\b\d{1,4}\.\d{2}\b`)

func (Permissive) Name() string { return "permissive" }

func (p Permissive) Candidates(doc *Document) []string {
	re := p.Pattern
	if re == nil {
		re = DefaultPermissive
	}
	return re.FindAllString(doc.Text(), -1)
}

var percentRe = regexp.MustCompile(`([-+]?\d{1,3}(?:\.\d+)?)\s*%`)

// ChangePercent looks for a signed percentage, trying selectors before a
// text scan. The second result is false when nothing plausible was found.
func ChangePercent(doc *Document, selectors []string, rg market.Range) (decimal.Decimal, bool) {
	var texts []string
	texts = append(texts, Selector{Selectors: selectors}.Candidates(doc)...)
	texts = append(texts, doc.Text())
	for _, t := range texts {
		for _, m := range percentRe.FindAllStringSubmatch(t, -1) {
			v, err := decimal.NewFromString(strings.TrimPrefix(m[1], "+"))
			if err != nil {
				continue
			}
			if rg.Contains(v) {
				return v, true
			}
		}
	}
	return decimal.Zero, false
}
