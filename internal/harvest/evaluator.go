package harvest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Criterion names one inclusion or exclusion check
type Criterion string

const (
	CriterionKeyword     Criterion = "keyword"
	CriterionBrand       Criterion = "brand"
	CriterionRating      Criterion = "rating"
	CriterionPurchases   Criterion = "purchases"
	CriterionFulfillment Criterion = "fulfillment"
	CriterionStock       Criterion = "stock"
	CriterionLowStock    Criterion = "low_stock"
	CriterionUsed        Criterion = "used"
	CriterionDelivery    Criterion = "delivery"
	CriterionSponsored   Criterion = "sponsored"
)

// Rejection explains why a candidate failed
type Rejection struct {
	Criterion Criterion
	Reason    string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s: %s", r.Criterion, r.Reason)
}

var (
	ratingPattern     = regexp.MustCompile(`[\d.]+`)
	purchasesPattern  = regexp.MustCompile(`(?i)(\d+[\d,]*)\s*([kK])?\+?\s*bought`)
	lowStockPattern   = regexp.MustCompile(`(?i)only\s+\d+\s+left|\d+\s+left\s+in\s+stock`)
	usedOffersPattern = regexp.MustCompile(`used\s*(&|and)\s*new\s*offers?`)
)

// Evaluator applies a FilterConfig to candidates
type Evaluator struct {
	sel         Selectors
	fulfillment []*regexp.Regexp
}

// NewEvaluator compiles the selector patterns once
func NewEvaluator(sel Selectors) *Evaluator {
	e := &Evaluator{sel: sel}
	for _, p := range sel.FulfillmentPatterns {
		e.fulfillment = append(e.fulfillment, regexp.MustCompile(p))
	}
	return e
}

// Evaluate reports whether the candidate passes every enabled criterion
func (e *Evaluator) Evaluate(c Candidate, cfg FilterConfig, today time.Time) bool {
	ok, _ := e.Explain(c, cfg, today)
	return ok
}

// Explain evaluates the criteria in order and returns the first one that rejects the candidate
func (e *Evaluator) Explain(c Candidate, cfg FilterConfig, today time.Time) (bool, Rejection) {
	checks := []func(Candidate, FilterConfig, time.Time) *Rejection{
		e.checkKeywords,
		e.checkBrands,
		e.checkRating,
		e.checkPurchases,
		e.checkFulfillment,
		e.checkStock,
		e.checkLowStock,
		e.checkUsed,
		e.checkDelivery,
		e.checkSponsored,
	}
	for _, check := range checks {
		if r := check(c, cfg, today); r != nil {
			return false, *r
		}
	}
	return true, Rejection{}
}

func reject(criterion Criterion, format string, args ...any) *Rejection {
	return &Rejection{Criterion: criterion, Reason: fmt.Sprintf(format, args...)}
}

func (e *Evaluator) checkKeywords(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if len(cfg.SearchKeywords) == 0 {
		return nil
	}
	title := strings.ToLower(c.Title)
	if title == "" {
		return reject(CriterionKeyword, "no title")
	}
	for _, kw := range cfg.SearchKeywords {
		if !strings.Contains(title, strings.ToLower(kw)) {
			return reject(CriterionKeyword, "title lacks %q", kw)
		}
	}
	return nil
}

func (e *Evaluator) checkBrands(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if len(cfg.ExcludeBrands) == 0 {
		return nil
	}
	text := c.Title
	if e.sel.Brand != "" && c.Selection != nil {
		if brand := c.Selection.Find(e.sel.Brand).First(); brand.Length() > 0 {
			text = brand.Text()
		}
	}
	text = strings.ToLower(text)
	for _, brand := range cfg.ExcludeBrands {
		if strings.Contains(text, strings.ToLower(brand)) {
			return reject(CriterionBrand, "excluded brand %q", brand)
		}
	}
	return nil
}

func (e *Evaluator) checkRating(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if cfg.MinRating <= 0 {
		return nil
	}
	el := e.find(c, e.sel.Rating).First()
	if el.Length() == 0 {
		return reject(CriterionRating, "no rating element")
	}
	rating, _ := strconv.ParseFloat(ratingPattern.FindString(el.Text()), 64)
	if rating > 0 && rating < cfg.MinRating {
		return reject(CriterionRating, "rating %.1f below %.1f", rating, cfg.MinRating)
	}
	return nil
}

func (e *Evaluator) checkPurchases(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if cfg.MinPurchases <= 0 {
		return nil
	}
	count, found := -1, false
	e.find(c, e.sel.Purchases).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		count, found = ParsePurchases(s.Text())
		return !found
	})
	if found && count < cfg.MinPurchases {
		return reject(CriterionPurchases, "%d bought below %d", count, cfg.MinPurchases)
	}
	return nil
}

// ParsePurchases reads a "N bought" or "NK+ bought" figure
func ParsePurchases(text string) (int, bool) {
	m := purchasesPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		n *= 1000
	}
	return n, true
}

func (e *Evaluator) checkFulfillment(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if !cfg.AmazonShipping {
		return nil
	}
	if e.find(c, e.sel.PrimeBadge).Length() > 0 {
		return nil
	}
	text := strings.ToLower(c.Text)
	for _, re := range e.fulfillment {
		if re.MatchString(text) {
			return nil
		}
	}
	return reject(CriterionFulfillment, "no prime badge or first-party fulfillment")
}

func (e *Evaluator) checkStock(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if !cfg.InStockOnly {
		return nil
	}
	text := strings.ToLower(c.Text)
	for _, phrase := range e.sel.UnavailablePhrases {
		if strings.Contains(text, phrase) {
			return reject(CriterionStock, "%s", phrase)
		}
	}
	return nil
}

func (e *Evaluator) checkLowStock(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if !cfg.ExcludeLowStock {
		return nil
	}
	if m := lowStockPattern.FindString(c.Text); m != "" {
		return reject(CriterionLowStock, "%s", strings.ToLower(m))
	}
	return nil
}

func (e *Evaluator) checkUsed(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if !cfg.ExcludeUsed {
		return nil
	}
	text := strings.ToLower(c.Text)
	if strings.Contains(text, "used") && !usedOffersPattern.MatchString(text) {
		return reject(CriterionUsed, "used item")
	}
	return nil
}

func (e *Evaluator) checkDelivery(c Candidate, cfg FilterConfig, today time.Time) *Rejection {
	if cfg.MaxDeliveryDays <= 0 {
		return nil
	}
	el := e.find(c, e.sel.Delivery).First()
	if el.Length() == 0 {
		return reject(CriterionDelivery, "no delivery estimate")
	}
	text, ok := el.Attr("aria-label")
	if !ok || strings.TrimSpace(text) == "" {
		text = el.Text()
	}
	if !CheckWithinBudget(text, cfg.MaxDeliveryDays, today) {
		return reject(CriterionDelivery, "%q exceeds %d days", normalizeSpace(text), cfg.MaxDeliveryDays)
	}
	return nil
}

func (e *Evaluator) checkSponsored(c Candidate, cfg FilterConfig, _ time.Time) *Rejection {
	if !cfg.SearchSponsoredOnly {
		return nil
	}
	sponsored := e.find(c, e.sel.Sponsored).Length() > 0 || strings.Contains(c.Text, "Sponsored")
	if !sponsored || !c.InResults {
		return reject(CriterionSponsored, "not a sponsored search result")
	}
	return nil
}

// find runs selector inside the candidate element; an empty selector or a
// candidate without an element yields an empty selection
func (e *Evaluator) find(c Candidate, selector string) *goquery.Selection {
	if c.Selection == nil || selector == "" {
		return &goquery.Selection{}
	}
	return c.Selection.Find(selector)
}
