package harvest

// Selectors describes where the collector finds things on a search results page
type Selectors struct {
	// ResultsRoot is the container holding the genuine search results.
	// Anything outside it (carousels, related items) is never scanned.
	ResultsRoot string
	// ResultItem matches one result element inside ResultsRoot
	ResultItem string
	// IdentifierAttr is the attribute holding the product identifier
	IdentifierAttr string

	// Titles are tried in order; the first non-empty match wins
	Titles []string

	// Brand holds the text excluded brands are matched against; a result without it is never excluded
	Brand      string
	Rating     string
	Purchases  string
	PrimeBadge string
	Delivery   string
	Sponsored  string
	// SponsoredScope must be an ancestor of a result for the sponsorship check
	SponsoredScope string

	// NextPage is the pagination control that moves to the following page
	NextPage string
	// LoadMore is clicked when scrolling stops producing new results. It must
	// never match a pagination control.
	LoadMore string

	// NoResultsText marks a page that explicitly has no results
	NoResultsText string
	// RobotCheck matches the interstitial served instead of results when the site blocks us
	RobotCheck string

	// FulfillmentPatterns are regular expressions over lower-cased result text
	FulfillmentPatterns []string
	// UnavailablePhrases are lower-cased substrings marking an item as not purchasable
	UnavailablePhrases []string
}

// DefaultSelectors returns the selectors for Amazon search result pages
func DefaultSelectors() Selectors {
	return Selectors{
		ResultsRoot:    `[data-component-type="s-search-results"]`,
		ResultItem:     `[data-component-type="s-search-result"]`,
		IdentifierAttr: "data-asin",
		Titles: []string{
			"h2 span",
			"h2",
			".a-text-normal",
			".s-line-clamp-2",
			`[data-cy="title-recipe"]`,
			".a-size-base-plus",
			".a-size-medium",
		},
		Brand:          ".a-size-base-plus, h2 .a-text-normal, .s-line-clamp-2",
		Rating:         `.a-icon-star-small .a-icon-alt, .a-icon-star .a-icon-alt, [data-cy="reviews-ratings-slot"] span`,
		Purchases:      ".a-size-base.a-color-secondary, .a-size-small.a-color-secondary",
		PrimeBadge:     `.a-icon-prime, [aria-label*="Prime"]`,
		Delivery:       `[aria-label*="delivery"], [aria-label*="Delivery"], [aria-label*="arrives"], [aria-label*="Arrives"]`,
		Sponsored:      `.s-sponsored-label, [data-component-type*="sp-sponsored"]`,
		SponsoredScope: ".s-result-list, .s-search-results, " + `[data-component-type="s-search-results"]`,
		NextPage:       ".s-pagination-next:not(.s-pagination-disabled)",
		LoadMore:       `[data-cel-widget="load_more"] a, [data-cel-widget="load_more"] button`,
		NoResultsText:  "No results for your search query",
		RobotCheck:     `form[action*="validateCaptcha"]`,
		FulfillmentPatterns: []string{
			`ships\s+from\s+amazon`,
			`fulfilled\s+by\s+amazon`,
		},
		UnavailablePhrases: []string{
			"currently unavailable",
			"temporarily out of stock",
			"out of stock",
		},
	}
}
