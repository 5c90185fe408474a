package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// candidate extracts the single candidate of a one-item results page
func candidate(t *testing.T, itemHTML string) Candidate {
	t.Helper()
	cands, err := NewExtractor(DefaultSelectors()).Extract(mustSnapshot(resultsPage("", itemHTML)))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	return cands[0]
}

func evalToday() time.Time {
	return time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC)
}

func explain(t *testing.T, c Candidate, cfg FilterConfig) (bool, Rejection) {
	t.Helper()
	return NewEvaluator(DefaultSelectors()).Explain(c, cfg, evalToday())
}

func TestEvaluator_EmptyConfigAcceptsEverything(t *testing.T) {
	c := candidate(t, item("B000000001", "<div>anything</div>"))
	assert.True(t, NewEvaluator(DefaultSelectors()).Evaluate(c, FilterConfig{}, evalToday()))
}

func TestEvaluator_Rating(t *testing.T) {
	cfg := FilterConfig{MinRating: 4.0}

	t.Run("below minimum rejects", func(t *testing.T) {
		ok, why := explain(t, candidate(t, titled("B000000001", "Widget", rating("3.5"))), cfg)
		assert.False(t, ok)
		assert.Equal(t, CriterionRating, why.Criterion)
	})

	t.Run("missing rating rejects", func(t *testing.T) {
		ok, why := explain(t, candidate(t, titled("B000000001", "Widget")), cfg)
		assert.False(t, ok)
		assert.Equal(t, CriterionRating, why.Criterion)
	})

	t.Run("at minimum passes", func(t *testing.T) {
		ok, _ := explain(t, candidate(t, titled("B000000001", "Widget", rating("4.0"))), cfg)
		assert.True(t, ok)
	})

	t.Run("unreadable rating passes", func(t *testing.T) {
		ok, _ := explain(t, candidate(t, titled("B000000001", "Widget", `<span class="a-icon-star-small"><span class="a-icon-alt">No ratings yet</span></span>`)), cfg)
		assert.True(t, ok)
	})

	t.Run("reviews slot", func(t *testing.T) {
		c := candidate(t, titled("B000000001", "Widget", `<div data-cy="reviews-ratings-slot"><span>3.9 out of 5</span></div>`))
		ok, _ := explain(t, c, cfg)
		assert.False(t, ok)
	})
}

func TestEvaluator_Purchases(t *testing.T) {
	cfg := FilterConfig{MinPurchases: 50}

	t.Run("absent passes", func(t *testing.T) {
		ok, _ := explain(t, candidate(t, titled("B000000001", "Widget")), cfg)
		assert.True(t, ok)
	})

	t.Run("below minimum rejects", func(t *testing.T) {
		ok, why := explain(t, candidate(t, titled("B000000001", "Widget", bought("20+"))), cfg)
		assert.False(t, ok)
		assert.Equal(t, CriterionPurchases, why.Criterion)
	})

	t.Run("thousands pass", func(t *testing.T) {
		ok, _ := explain(t, candidate(t, titled("B000000001", "Widget", bought("1K+"))), cfg)
		assert.True(t, ok)
	})

	t.Run("comma grouping", func(t *testing.T) {
		ok, _ := explain(t, candidate(t, titled("B000000001", "Widget", bought("1,200+"))), FilterConfig{MinPurchases: 1000})
		assert.True(t, ok)
	})
}

func TestParsePurchases(t *testing.T) {
	tests := []struct {
		text  string
		want  int
		found bool
	}{
		{"50+ bought in past month", 50, true},
		{"1K+ bought in past month", 1000, true},
		{"2k bought", 2000, true},
		{"10,000+ bought", 10000, true},
		{"Best seller", 0, false},
	}
	for _, tt := range tests {
		got, found := ParsePurchases(tt.text)
		assert.Equal(t, tt.found, found, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestEvaluator_Keywords(t *testing.T) {
	c := candidate(t, titled("B000000001", "USB-C Braided Charging Cable"))

	ok, _ := explain(t, c, FilterConfig{SearchKeywords: StringList{"usb-c", "cable"}})
	assert.True(t, ok)

	ok, why := explain(t, c, FilterConfig{SearchKeywords: StringList{"usb-c", "lightning"}})
	assert.False(t, ok, "every keyword must match")
	assert.Equal(t, CriterionKeyword, why.Criterion)
}

func TestEvaluator_Keywords_NoTitle(t *testing.T) {
	c := Candidate{ID: "B000000001"}
	ok, why := explain(t, c, FilterConfig{SearchKeywords: StringList{"cable"}})
	assert.False(t, ok)
	assert.Equal(t, CriterionKeyword, why.Criterion)
}

func TestEvaluator_Brands(t *testing.T) {
	cfg := FilterConfig{ExcludeBrands: StringList{"anker"}}

	ok, why := explain(t, candidate(t, titled("B000000001", "Anker PowerCore 10000")), cfg)
	assert.False(t, ok)
	assert.Equal(t, CriterionBrand, why.Criterion)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Belkin BoostCharge")), cfg)
	assert.True(t, ok)

	c := candidate(t, item("B000000001", `<span class="a-size-base-plus">ANKER</span><h2>Power bank</h2>`))
	ok, _ = explain(t, c, cfg)
	assert.False(t, ok, "dedicated brand markup is matched")
}

func TestEvaluator_TermsIgnoreCase(t *testing.T) {
	c := candidate(t, titled("B000000001", "USB Cable Fast"))

	ok, _ := explain(t, c, FilterConfig{SearchKeywords: StringList{"USB", "Cable"}})
	assert.True(t, ok, "keywords built without decoding still match")

	ok, why := explain(t, c, FilterConfig{ExcludeBrands: StringList{"Cable"}})
	assert.False(t, ok)
	assert.Equal(t, CriterionBrand, why.Criterion)
}

func TestEvaluator_Fulfillment(t *testing.T) {
	cfg := FilterConfig{AmazonShipping: true}

	ok, why := explain(t, candidate(t, titled("B000000001", "Widget", "<span>Ships from SellerCo</span>")), cfg)
	assert.False(t, ok)
	assert.Equal(t, CriterionFulfillment, why.Criterion)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget", `<i class="a-icon a-icon-prime"></i>`)), cfg)
	assert.True(t, ok)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget", "<span>Ships from Amazon</span>")), cfg)
	assert.True(t, ok)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget", "<span>Fulfilled by  Amazon</span>")), cfg)
	assert.True(t, ok)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget")), FilterConfig{})
	assert.True(t, ok, "fulfillment is only checked when enabled")
}

func TestEvaluator_Stock(t *testing.T) {
	cfg := FilterConfig{InStockOnly: true}

	for _, text := range []string{"Currently unavailable.", "Temporarily out of stock", "Out of Stock"} {
		ok, why := explain(t, candidate(t, titled("B000000001", "Widget", "<span>"+text+"</span>")), cfg)
		assert.False(t, ok, text)
		assert.Equal(t, CriterionStock, why.Criterion)
	}

	ok, _ := explain(t, candidate(t, titled("B000000001", "Widget", "<span>In stock</span>")), cfg)
	assert.True(t, ok)
}

func TestEvaluator_LowStock(t *testing.T) {
	cfg := FilterConfig{ExcludeLowStock: true}

	for _, text := range []string{"Only 3 left in stock - order soon.", "only 1 left", "7 left in stock"} {
		ok, why := explain(t, candidate(t, titled("B000000001", "Widget", "<span>"+text+"</span>")), cfg)
		assert.False(t, ok, text)
		assert.Equal(t, CriterionLowStock, why.Criterion)
	}

	ok, _ := explain(t, candidate(t, titled("B000000001", "Widget")), cfg)
	assert.True(t, ok)
}

func TestEvaluator_Used(t *testing.T) {
	cfg := FilterConfig{ExcludeUsed: true}

	ok, why := explain(t, candidate(t, titled("B000000001", "Widget (Renewed)", "<span>Used - Like New</span>")), cfg)
	assert.False(t, ok)
	assert.Equal(t, CriterionUsed, why.Criterion)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget", "<span>More Buying Choices: Used &amp; New offers</span>")), cfg)
	assert.True(t, ok)
}

func TestEvaluator_Delivery(t *testing.T) {
	cfg := FilterConfig{MaxDeliveryDays: 3}

	ok, why := explain(t, candidate(t, titled("B000000001", "Widget")), cfg)
	assert.False(t, ok, "missing estimate rejects")
	assert.Equal(t, CriterionDelivery, why.Criterion)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget", delivery("FREE delivery Tomorrow, Feb 2"))), cfg)
	assert.True(t, ok)

	ok, why = explain(t, candidate(t, titled("B000000001", "Widget", delivery("FREE delivery Feb 10 - 14"))), cfg)
	assert.False(t, ok)
	assert.Equal(t, CriterionDelivery, why.Criterion)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget", delivery("delivery sometime"))), cfg)
	assert.False(t, ok, "unparseable estimate rejects")
}

func TestEvaluator_Sponsored(t *testing.T) {
	cfg := FilterConfig{SearchSponsoredOnly: true}

	ok, _ := explain(t, candidate(t, titled("B000000001", "Widget", `<span class="s-sponsored-label">Ad</span>`)), cfg)
	assert.True(t, ok)

	ok, _ = explain(t, candidate(t, titled("B000000001", "Widget", "<span>Sponsored</span>")), cfg)
	assert.True(t, ok)

	ok, why := explain(t, candidate(t, titled("B000000001", "Widget")), cfg)
	assert.False(t, ok)
	assert.Equal(t, CriterionSponsored, why.Criterion)

	c := candidate(t, titled("B000000001", "Widget", "<span>Sponsored</span>"))
	c.InResults = false
	ok, _ = explain(t, c, cfg)
	assert.False(t, ok, "sponsored items outside the results list are rejected")
}

func TestEvaluator_FirstFailingCriterionReported(t *testing.T) {
	c := candidate(t, titled("B000000001", "Anker cable", rating("2.0"), "<span>Out of stock</span>"))
	cfg := FilterConfig{ExcludeBrands: StringList{"anker"}, MinRating: 4, InStockOnly: true}

	ok, why := explain(t, c, cfg)
	assert.False(t, ok)
	assert.Equal(t, CriterionBrand, why.Criterion)
	assert.Contains(t, why.String(), "brand")
}
