package harvest

import (
	"encoding/json"
	"fmt"
	"strings"

	herrors "sjsage522/asinharvester/pkg/errors"

	"gopkg.in/yaml.v3"
)

// StringList is a list of lower-cased, trimmed terms. It decodes from either a
// list or a single comma-separated string.
type StringList []string

// ParseStringList splits a comma-separated string into a StringList
func ParseStringList(s string) StringList {
	var out StringList
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeList(items []string) StringList {
	var out StringList
	for _, item := range items {
		out = append(out, ParseStringList(item)...)
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = ParseStringList(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*l = normalizeList(many)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = ParseStringList(value.Value)
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*l = normalizeList(many)
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// FilterConfig selects which criteria a candidate must pass. A zero field disables its criterion.
type FilterConfig struct {
	SearchKeywords      StringList `json:"searchKeywords,omitempty" yaml:"searchKeywords,omitempty"`
	ExcludeBrands       StringList `json:"excludeBrands,omitempty" yaml:"excludeBrands,omitempty"`
	MinRating           float64    `json:"minRating,omitempty" yaml:"minRating,omitempty"`
	MinPurchases        int        `json:"minPurchases,omitempty" yaml:"minPurchases,omitempty"`
	AmazonShipping      bool       `json:"amazonShipping,omitempty" yaml:"amazonShipping,omitempty"`
	InStockOnly         bool       `json:"inStockOnly,omitempty" yaml:"inStockOnly,omitempty"`
	MaxDeliveryDays     int        `json:"maxDeliveryDays,omitempty" yaml:"maxDeliveryDays,omitempty"`
	SearchSponsoredOnly bool       `json:"searchSponsoredOnly,omitempty" yaml:"searchSponsoredOnly,omitempty"`
	ExcludeLowStock     bool       `json:"excludeLowStock,omitempty" yaml:"excludeLowStock,omitempty"`
	ExcludeUsed         bool       `json:"excludeUsed,omitempty" yaml:"excludeUsed,omitempty"`
}

// UnmarshalJSON accepts the legacy "excludeBrand" key as an alias of "excludeBrands"
func (c *FilterConfig) UnmarshalJSON(data []byte) error {
	type plain FilterConfig
	aux := struct {
		*plain
		ExcludeBrand StringList `json:"excludeBrand"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(c.ExcludeBrands) == 0 && len(aux.ExcludeBrand) > 0 {
		c.ExcludeBrands = aux.ExcludeBrand
	}
	return nil
}

// IsEmpty reports whether no criterion is enabled
func (c FilterConfig) IsEmpty() bool {
	return len(c.SearchKeywords) == 0 &&
		len(c.ExcludeBrands) == 0 &&
		c.MinRating == 0 &&
		c.MinPurchases == 0 &&
		!c.AmazonShipping &&
		!c.InStockOnly &&
		c.MaxDeliveryDays == 0 &&
		!c.SearchSponsoredOnly &&
		!c.ExcludeLowStock &&
		!c.ExcludeUsed
}

// Validate rejects out-of-range thresholds. The collector itself never calls it;
// callers validate before starting a run.
func (c FilterConfig) Validate() error {
	if c.MinRating < 0 || c.MinRating > 5 {
		return herrors.NewConfiguration(fmt.Sprintf("minRating must be between 0 and 5, got %v", c.MinRating), nil)
	}
	if c.MinPurchases < 0 {
		return herrors.NewConfiguration(fmt.Sprintf("minPurchases must not be negative, got %d", c.MinPurchases), nil)
	}
	if c.MaxDeliveryDays < 0 {
		return herrors.NewConfiguration(fmt.Sprintf("maxDeliveryDays must not be negative, got %d", c.MaxDeliveryDays), nil)
	}
	return nil
}
