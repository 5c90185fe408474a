package browser

import (
	"context"
	"fmt"
	"time"

	"sjsage522/asinharvester/internal/harvest"
	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"

	"github.com/go-rod/rod"
)

const (
	stampRectsJS = `(widthAttr, heightAttr, selector) => {
		document.querySelectorAll(selector).forEach(el => {
			const r = el.getBoundingClientRect();
			el.setAttribute(widthAttr, String(r.width));
			el.setAttribute(heightAttr, String(r.height));
		});
	}`

	scrollToBottomJS = `() => window.scrollTo(0, document.body.scrollHeight)`
	scrollToTopJS    = `() => window.scrollTo(0, 0)`

	clickJS = `(selector) => {
		const el = document.querySelector(selector);
		if (!el) return false;
		el.click();
		return true;
	}`

	highlightJS = `(attr, ids) => {
		const wanted = new Set(ids);
		let marked = 0;
		document.querySelectorAll('[' + attr + ']').forEach(el => {
			if (!wanted.has((el.getAttribute(attr) || '').toUpperCase())) return;
			if (el.querySelector('.asin-harvest-badge')) return;
			el.style.outline = '3px solid #00a86b';
			el.style.outlineOffset = '-3px';
			const badge = document.createElement('div');
			badge.className = 'asin-harvest-badge';
			badge.textContent = '✓ ' + el.getAttribute(attr);
			badge.style.cssText = 'position:absolute;top:4px;right:4px;z-index:9999;padding:2px 6px;' +
				'background:#00a86b;color:#fff;font:bold 11px sans-serif;border-radius:3px;';
			if (getComputedStyle(el).position === 'static') el.style.position = 'relative';
			el.appendChild(badge);
			marked++;
		});
		return marked;
	}`

	clearHighlightJS = `() => {
		document.querySelectorAll('.asin-harvest-badge').forEach(b => {
			const host = b.parentElement;
			b.remove();
			if (host) {
				host.style.outline = '';
				host.style.outlineOffset = '';
			}
		});
	}`
)

// Page is a browser tab driven through rod
type Page struct {
	page *rod.Page
	sel  harvest.Selectors
	log  *logger.Logger
}

var (
	_ Session             = (*Page)(nil)
	_ harvest.Highlighter = (*Page)(nil)
)

// Navigate loads url and waits for the document to finish loading
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	page := p.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return herrors.NewNetwork(DriverRod, "navigate "+url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return herrors.NewNetwork(DriverRod, "wait for load of "+url, err)
	}
	p.log.Debug().Msg("Page loaded")
	return nil
}

// URL implements Session
func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Snapshot stamps the rendered size of every result item and captures the DOM
func (p *Page) Snapshot(ctx context.Context) (harvest.DocumentView, error) {
	page := p.page.Context(ctx)
	if _, err := page.Eval(stampRectsJS, harvest.RectWidthAttr, harvest.RectHeightAttr, p.sel.ResultItem); err != nil {
		return nil, fmt.Errorf("stamp element sizes: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	return harvest.SnapshotFromHTML(html)
}

// ScrollToBottom implements harvest.Driver
func (p *Page) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(scrollToBottomJS)
	return err
}

// ScrollToTop implements harvest.Driver
func (p *Page) ScrollToTop(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(scrollToTopJS)
	return err
}

// Click implements harvest.Driver
func (p *Page) Click(ctx context.Context, selector string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(clickJS, selector)
	if err != nil {
		return false, fmt.Errorf("click %s: %w", selector, err)
	}
	return res.Value.Bool(), nil
}

// Highlight outlines the result items of ids and badges them
func (p *Page) Highlight(ctx context.Context, ids []string) error {
	res, err := p.page.Context(ctx).Eval(highlightJS, p.sel.IdentifierAttr, ids)
	if err != nil {
		return fmt.Errorf("highlight: %w", err)
	}
	p.log.Debug().Int("marked", res.Value.Int()).Msg("Highlighted results")
	return nil
}

// ClearHighlighting removes every badge added by Highlight
func (p *Page) ClearHighlighting(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(clearHighlightJS)
	return err
}

// Close closes the tab
func (p *Page) Close() error {
	return p.page.Close()
}
