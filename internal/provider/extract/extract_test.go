package extract_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockalert/internal/market"
	"stockalert/internal/provider/extract"
)

const quotePage = `<html><head><script>var price = 99999.99;</script></head><body>
<div class="no_today"><span class="blind">71,500</span></div>
<div class="rate_info"><span class="num">+1.42%</span></div>
<table><tr><td>2024.01</td><td>Volume 123.45</td></tr></table>
</body></html>`

func TestExtractor_SelectorWins(t *testing.T) {
	t.Parallel()

	// Arrange
	doc := extract.NewDocument([]byte(quotePage))
	e := extract.Extractor{Steps: []extract.Step{
		{H: extract.Selector{Selectors: []string{".no_today .blind"}}, Range: market.NewRange(100, 1000000)},
		{H: extract.Permissive{}, Range: market.NewRange(50, 1000)},
	}}

	// Act
	v, via, ok := e.Price(doc)

	// Assert
	require.True(t, ok)
	require.Equal(t, "selector", via)
	require.True(t, decimal.NewFromInt(71500).Equal(v))
}

func TestExtractor_OutOfRangeFallsThrough(t *testing.T) {
	t.Parallel()

	// Arrange: the selector hit is implausible for this window
	doc := extract.NewDocument([]byte(quotePage))
	e := extract.Extractor{Steps: []extract.Step{
		{H: extract.Selector{Selectors: []string{".no_today .blind"}}, Range: market.NewRange(1, 10000)},
		{H: extract.Permissive{}, Range: market.NewRange(50, 1000)},
	}}

	// Act
	v, via, ok := e.Price(doc)

	// Assert: 2024.01 is out of range, 123.45 is taken; script text is ignored
	require.True(t, ok)
	require.Equal(t, "permissive", via)
	require.Equal(t, "123.45", v.String())
}

func TestExtractor_NothingPlausible(t *testing.T) {
	t.Parallel()

	doc := extract.NewDocument([]byte(quotePage))
	e := extract.Extractor{Steps: []extract.Step{
		{H: extract.Permissive{}, Range: market.NewRange(5000, 6000)},
	}}

	_, _, ok := e.Price(doc)
	require.False(t, ok)
}

func TestContext_KeywordAnchored(t *testing.T) {
	t.Parallel()

	// Arrange: keyword and value sit in sibling elements
	doc := extract.NewDocument([]byte(`<html><body><p>52주 최고 80,000</p><dl><dt>현재가</dt><dd>71,200원</dd></dl></body></html>`))

	// Act
	got := extract.Context{Keywords: []string{"현재가", "price"}}.Candidates(doc)

	// Assert
	require.Equal(t, []string{"71,200"}, got)
}

func TestContext_CaseInsensitive(t *testing.T) {
	t.Parallel()

	doc := extract.NewDocument([]byte(`Current PRICE: $189.30 (as of close)`))

	got := extract.Context{Keywords: []string{"price"}}.Candidates(doc)
	require.Equal(t, []string{"189.30"}, got)
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"71,500":     "71500",
		"₩ 1,350.25": "1350.25",
		"+3.5":       "3.5",
		"-0.75%":     "-0.75",
		"$189.30":    "189.3",
	}
	for in, want := range cases {
		v, ok := extract.ParseNumber(in)
		require.Truef(t, ok, "input %q", in)
		require.Equalf(t, want, v.String(), "input %q", in)
	}

	_, ok := extract.ParseNumber("n/a")
	require.False(t, ok)
}

func TestChangePercent(t *testing.T) {
	t.Parallel()

	// Arrange
	doc := extract.NewDocument([]byte(quotePage))

	// Act
	v, ok := extract.ChangePercent(doc, []string{".rate_info .num"}, market.NewRange(-50, 50))

	// Assert
	require.True(t, ok)
	require.Equal(t, "1.42", v.String())

	// Act: a page without a percentage
	_, ok = extract.ChangePercent(extract.NewDocument([]byte("<p>71,500</p>")), nil, market.NewRange(-50, 50))

	// Assert
	require.False(t, ok)
}
