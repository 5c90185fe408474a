package main

import (
	"fmt"
	"strings"

	"sjsage522/asinharvester/internal/command"
	"sjsage522/asinharvester/internal/harvest"

	"github.com/spf13/cobra"
)

var scanActions = map[string]command.Action{
	"all":      command.ActionScanAll,
	"filtered": command.ActionScanFiltered,
	"quick":    command.ActionScanQuick,
	"multi":    command.ActionCollectMultiPage,
}

type scanFlags struct {
	mode     string
	maxPages int
	account  string
	category string
	filter   harvest.FilterConfig
	keywords string
	brands   string
}

func newScanCmd(a *app) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Collect identifiers from one search result page",
		Long: `Scan opens a search result page, collects identifiers and prints the result as JSON.

Examples:
  # Everything on the first page
  asinharvester scan "https://www.amazon.com/s?k=usb+cable"

  # Filtered, five pages, saved for an account
  asinharvester scan --mode multi --pages 5 --min-rating 4 --exclude-brands "Acme, Generic" \
    --account alice --category electronics "https://www.amazon.com/s?k=usb+cable"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.mode, "mode", "m", "all", "Collection mode: all, filtered, quick or multi")
	cmd.Flags().IntVarP(&f.maxPages, "pages", "p", 0, "Page budget (0 uses the mode default)")
	cmd.Flags().StringVar(&f.account, "account", "", "Save the result under this account")
	cmd.Flags().StringVar(&f.category, "category", "", "Save the result under this category")

	// Filter flags
	cmd.Flags().StringVarP(&f.keywords, "keywords", "k", "", "Comma-separated keywords the text must contain")
	cmd.Flags().StringVarP(&f.brands, "exclude-brands", "b", "", "Comma-separated brands to exclude")
	cmd.Flags().Float64Var(&f.filter.MinRating, "min-rating", 0, "Minimum star rating")
	cmd.Flags().IntVar(&f.filter.MinPurchases, "min-purchases", 0, "Minimum recent purchases")
	cmd.Flags().IntVar(&f.filter.MaxDeliveryDays, "max-delivery-days", 0, "Maximum days until delivery")
	cmd.Flags().BoolVar(&f.filter.AmazonShipping, "amazon-shipping", false, "Require fulfillment by Amazon")
	cmd.Flags().BoolVar(&f.filter.InStockOnly, "in-stock", false, "Skip unavailable products")
	cmd.Flags().BoolVar(&f.filter.SearchSponsoredOnly, "sponsored-only", false, "Keep only sponsored results")
	cmd.Flags().BoolVar(&f.filter.ExcludeLowStock, "exclude-low-stock", false, "Skip products with only a few left")
	cmd.Flags().BoolVar(&f.filter.ExcludeUsed, "exclude-used", false, "Skip used offers")

	return cmd
}

// request turns the flags into a trigger command
func (f *scanFlags) request(url string) (command.Request, error) {
	action, ok := scanActions[strings.ToLower(f.mode)]
	if !ok {
		return command.Request{}, fmt.Errorf("unknown mode %q", f.mode)
	}
	filter := f.filter
	filter.SearchKeywords = harvest.ParseStringList(f.keywords)
	filter.ExcludeBrands = harvest.ParseStringList(f.brands)

	req := command.Request{Action: action, URL: url, MaxPages: f.maxPages}
	switch action {
	case command.ActionScanQuick:
		req.SearchKeywords = filter.SearchKeywords
		req.ExcludeBrand = filter.ExcludeBrands
		req.MinRating = filter.MinRating
		req.MaxDeliveryDays = filter.MaxDeliveryDays
	case command.ActionScanFiltered:
		req.Config = &filter
	case command.ActionCollectMultiPage:
		if !filter.IsEmpty() {
			req.Config = &filter
		}
	}
	return req, nil
}

func (a *app) runScan(cmd *cobra.Command, url string, f *scanFlags) error {
	req, err := f.request(url)
	if err != nil {
		return err
	}
	if (f.account == "") != (f.category == "") {
		return fmt.Errorf("--account and --category go together")
	}
	save := f.account != ""

	ctx := cmd.Context()
	services, err := initializeServices(ctx, a.cfg, need{navigator: true, store: save})
	if err != nil {
		return err
	}
	defer services.Cleanup()

	h := command.NewHandler(command.Options{
		Navigator: services.Navigator,
		Blocker:   services.Blocker,
		Timing:    services.Timing,
	})
	defer h.Close()

	resp := h.Handle(ctx, req)

	var out struct {
		command.Response
		NewCount   *int `json:"newCount,omitempty"`
		TotalCount *int `json:"totalCount,omitempty"`
	}
	out.Response = resp

	if save && len(resp.Asins) > 0 {
		saved, err := services.Store.SaveIdentifiers(ctx, f.account, f.category, resp.Asins)
		if err != nil {
			return err
		}
		out.NewCount, out.TotalCount = &saved.NewCount, &saved.TotalCount
	}

	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("scan failed: %s", resp.Error)
	}
	return nil
}
