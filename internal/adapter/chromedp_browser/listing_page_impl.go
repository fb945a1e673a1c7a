package chromedp_browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/user/valuation-service/internal/repository"
)

const (
	maxScrolls       = 15
	minScrolls       = 6
	scrollPause      = 2 * time.Second
	settleAfterLoad  = 3 * time.Second
	listingItemQuery = "li[data-advert-id], article"
)

// clickButtonScript clicks the first visible button whose text contains one of the phrases.
func clickButtonScript(phrases ...string) string {
	list, _ := json.Marshal(phrases)
	return fmt.Sprintf(`(function(phrases) {
	const buttons = Array.from(document.querySelectorAll('button'));
	for (const b of buttons) {
		const text = (b.innerText || b.textContent || '').trim().toLowerCase();
		if (!phrases.some(p => text.includes(p.toLowerCase()))) continue;
		if (b.disabled || b.offsetParent === null) continue;
		b.scrollIntoView({block: 'center'});
		b.click();
		return true;
	}
	return false;
})(%s)`, list)
}

func countScript(query string) string {
	q, _ := json.Marshal(query)
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, q)
}

// FetchPage loads a results page, scrolls until lazy-loaded cards stop appearing
// and returns the rendered document.
func (b *Browser) FetchPage(ctx context.Context, url string) (string, error) {
	// Scrolling alone may take maxScrolls*scrollPause on top of the load itself.
	tabCtx, cancel := b.newTab(ctx, b.timeout+maxScrolls*scrollPause)
	defer cancel()

	start := time.Now()
	err := chromedp.Run(tabCtx,
		b.prepareTab(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleAfterLoad),
	)
	if err != nil {
		return "", classify(ctx, url, err)
	}

	var clicked bool
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(clickButtonScript("accept"), &clicked)); err == nil && clicked {
		b.logger.Info("Accepted cookies", "url", url)
	}

	if err := b.scrollToEnd(tabCtx); err != nil {
		return "", classify(ctx, url, err)
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", classify(ctx, url, err)
	}

	b.logger.Info("Fetched listing page", "url", url, "bytes", len(html), "duration_ms", time.Since(start).Milliseconds())
	return html, nil
}

func (b *Browser) scrollToEnd(ctx context.Context) error {
	last := -1
	for i := 0; i < maxScrolls; i++ {
		var count int
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(scrollPause),
			chromedp.Evaluate(countScript(listingItemQuery), &count),
		)
		if err != nil {
			return err
		}
		if count == last && i >= minScrolls {
			b.logger.Debug("Listing content settled", "scrolls", i+1, "items", count)
			break
		}
		last = count
	}
	return chromedp.Run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
		chromedp.Sleep(scrollPause),
	)
}

var _ repository.PageFetcher = (*Browser)(nil)
