package chromedp_browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/user/valuation-service/internal/repository"
)

const detailPageTimeout = 10 * time.Second

// imageSourcesScript returns, per <img>, the first of src, data-src and data-lazy-src
// that holds an absolute http(s) URL.
const imageSourcesScript = `Array.from(document.querySelectorAll('img')).map(img => {
	for (const attr of ['src', 'data-src', 'data-lazy-src']) {
		const v = img.getAttribute(attr);
		if (v && v.startsWith('http')) return v;
	}
	return '';
}).filter(v => v !== '')`

// DetailImages opens url in a separate tab, closed again before returning,
// and lists its image URLs in document order.
func (b *Browser) DetailImages(ctx context.Context, url string) ([]string, error) {
	tabCtx, cancel := b.newTab(ctx, detailPageTimeout+2*time.Second)
	defer cancel()

	var images []string
	err := chromedp.Run(tabCtx,
		b.prepareTab(),
		chromedp.Navigate(url),
		chromedp.WaitReady("img", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(imageSourcesScript, &images),
	)
	if err != nil {
		return nil, classify(ctx, url, err)
	}

	b.logger.Debug("Collected detail page images", "url", url, "images", len(images))
	return images, nil
}

var _ repository.DetailImageFetcher = (*Browser)(nil)
