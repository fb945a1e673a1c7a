package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/user/valuation-service/internal/repository"
)

func TestClassify(t *testing.T) {
	live := context.Background()
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", context.DeadlineExceeded, repository.ErrPageTimeout},
		{"wrapped deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), repository.ErrPageTimeout},
		{"net error", errors.New("net::ERR_NAME_NOT_RESOLVED"), repository.ErrNavigationFailed},
	}
	for _, tt := range tests {
		if got := classify(live, "https://example.com", tt.err); !errors.Is(got, tt.want) {
			t.Errorf("%s: classify = %v; want %v", tt.name, got, tt.want)
		}
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := classify(cancelled, "https://example.com", context.DeadlineExceeded); !errors.Is(got, context.Canceled) {
		t.Errorf("classify with cancelled caller = %v; want context.Canceled", got)
	}
}

func TestClickButtonScriptEmbedsPhrases(t *testing.T) {
	got := clickButtonScript("Get my valuation", `It's "quoted"`)
	if !strings.Contains(got, `["Get my valuation","It's \"quoted\""]`) {
		t.Errorf("script does not embed a JSON phrase list:\n%s", got)
	}
}

func TestCountScriptQuotesSelector(t *testing.T) {
	got := countScript("li[data-advert-id], article")
	want := `document.querySelectorAll("li[data-advert-id], article").length`
	if got != want {
		t.Errorf("countScript = %q; want %q", got, want)
	}
}

// newTestBrowser starts headless Chrome, skipping when no browser is installed.
func newTestBrowser(t *testing.T) *Browser {
	t.Helper()
	var found bool
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found || testing.Short() {
		t.Skip("chrome not available")
	}
	b, err := NewBrowser(Options{Headless: true, PageLoadTimeout: 20 * time.Second})
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestDetailImages(t *testing.T) {
	b := newTestBrowser(t)
	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><body>
			<img src="%[1]s/1.jpg">
			<img src="/relative.jpg" data-src="%[1]s/2.jpg">
			<img data-lazy-src="%[1]s/3.jpg">
		</body></html>`, base)
	}))
	defer srv.Close()
	base = srv.URL

	got, err := b.DetailImages(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DetailImages: %v", err)
	}
	want := []string{base + "/1.jpg", base + "/2.jpg", base + "/3.jpg"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("DetailImages = %v; want %v", got, want)
	}
}
