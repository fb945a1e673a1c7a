package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/pkg/retry"
)

const (
	registrationInput = `#vehicleReg, input[name='vehicleReg'], input[placeholder='e.g. AB12 CDE']`
	mileageInput      = `input[name='Mileage'], #Mileage, input[placeholder='e.g. 32,000']`
	emailInput        = `input[type='email']`
	postcodeInput     = `input[placeholder*='M71'], input[placeholder*='postcode'], input[name='postcode']`

	stepTimeout     = 20 * time.Second
	optionalTimeout = 5 * time.Second
)

// priceFragmentsScript returns the text of every element with a direct text node containing a pound sign.
const priceFragmentsScript = `Array.from(document.querySelectorAll('body *'))
	.filter(el => Array.from(el.childNodes).some(n => n.nodeType === Node.TEXT_NODE && n.textContent.includes('£')))
	.map(el => (el.innerText || el.textContent || '').trim())
	.filter(t => t.length > 0)`

// vatNoScript answers the VAT registration question, whose button text is exactly "No".
const vatNoScript = `(function() {
	const b = Array.from(document.querySelectorAll('button')).find(b => (b.innerText || '').trim() === 'No');
	if (!b) return false;
	b.scrollIntoView(true);
	b.click();
	return true;
})()`

// selectFirstOptionScript picks the first real option of every empty <select>.
const selectFirstOptionScript = `Array.from(document.querySelectorAll('select')).forEach(s => {
	if (!s.value && s.options.length > 1) {
		s.selectedIndex = 1;
		s.dispatchEvent(new Event('change', {bubbles: true}));
	}
})`

// ValuationFlowConfig configures the valuation form flow.
type ValuationFlowConfig struct {
	HomeURL  string
	Email    string
	Postcode string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// ValuationFlow drives the instant-valuation form in a fresh browser session per vehicle.
type ValuationFlow struct {
	browser *Browser
	cfg     ValuationFlowConfig
	logger  *slog.Logger
}

// NewValuationFlow creates a valuation provider backed by b's browser allocator.
func NewValuationFlow(b *Browser, cfg ValuationFlowConfig) repository.ValuationProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = b.logger
	}
	return &ValuationFlow{browser: b, cfg: cfg, logger: logger}
}

// QuoteFragments fills the form for plate and mileage and returns the short price
// texts from the result page. The session, cookies included, is discarded afterwards.
func (v *ValuationFlow) QuoteFragments(ctx context.Context, plate string, mileage int) ([]string, error) {
	// A new context on the allocator starts a separate browser, so no state leaks between vehicles.
	sessionCtx, cancelSession := chromedp.NewContext(v.browser.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSession()
	sessionCtx, cancelTimeout := context.WithTimeout(sessionCtx, v.cfg.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelSession)
	defer stop()

	log := v.logger.With("plate", plate, "mileage", mileage)
	log.Info("Requesting valuation")

	fail := func(step string, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %w", repository.ErrValuationUnavailable, step, err)
	}

	err := chromedp.Run(sessionCtx,
		v.browser.prepareTab(),
		chromedp.Navigate(v.cfg.HomeURL),
		chromedp.Sleep(4*time.Second),
	)
	if err != nil {
		return nil, fail("load homepage", err)
	}
	cookiesAccepted := v.acceptCookies(sessionCtx, log)

	if err := v.step(sessionCtx, stepTimeout,
		chromedp.WaitVisible(registrationInput, chromedp.ByQuery),
		chromedp.Clear(registrationInput, chromedp.ByQuery),
		chromedp.SendKeys(registrationInput, plate, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Clear(mileageInput, chromedp.ByQuery),
		chromedp.SendKeys(mileageInput, strconv.Itoa(mileage), chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	); err != nil {
		return nil, fail("enter registration", err)
	}

	if err := v.clickButton(sessionCtx, "Get my car valuation"); err != nil {
		return nil, fail("submit registration", err)
	}
	if err := waitForURL(sessionCtx, stepTimeout, "/vehicle/details"); err != nil {
		return nil, fail("reach vehicle details", err)
	}
	_ = retry.Sleep(sessionCtx, 2*time.Second)

	if !cookiesAccepted {
		v.acceptCookies(sessionCtx, log)
	}

	if err := v.step(sessionCtx, stepTimeout,
		chromedp.WaitVisible(emailInput, chromedp.ByQuery),
		chromedp.Clear(emailInput, chromedp.ByQuery),
		chromedp.SendKeys(emailInput, v.cfg.Email, chromedp.ByQuery),
	); err != nil {
		log.Warn("Email field not filled", "error", err)
	}
	if err := v.step(sessionCtx, optionalTimeout,
		chromedp.Clear(postcodeInput, chromedp.ByQuery),
		chromedp.SendKeys(postcodeInput, v.cfg.Postcode, chromedp.ByQuery),
	); err != nil {
		log.Warn("Postcode field not filled", "error", err)
	}
	var vatAnswered bool
	_ = v.step(sessionCtx, optionalTimeout, chromedp.Evaluate(vatNoScript, &vatAnswered))
	_ = chromedp.Run(sessionCtx, chromedp.Evaluate(selectFirstOptionScript, nil))

	_ = chromedp.Run(sessionCtx,
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`window.scrollBy(0, -150)`, nil),
		chromedp.Sleep(500*time.Millisecond),
	)

	if err := v.clickButton(sessionCtx, "Get my valuation", "Get valuation"); err != nil {
		log.Warn("Valuation button not found", "error", err)
	} else {
		_ = retry.Sleep(sessionCtx, 6*time.Second)
		if err := waitForURL(sessionCtx, stepTimeout, "/valuation/", "/appointment"); err != nil {
			log.Warn("Valuation page URL not reached", "error", err)
		}
	}

	_ = retry.Sleep(sessionCtx, 2*time.Second)
	var fragments []string
	if err := chromedp.Run(sessionCtx, chromedp.Evaluate(priceFragmentsScript, &fragments)); err != nil {
		return nil, fail("read result page", err)
	}

	log.Info("Valuation page read", "fragments", len(fragments))
	return fragments, nil
}

// step runs actions with their own deadline inside the session.
func (v *ValuationFlow) step(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

var errButtonNotFound = errors.New("button not found")

func (v *ValuationFlow) clickButton(ctx context.Context, phrases ...string) error {
	var clicked bool
	if err := v.step(ctx, optionalTimeout, chromedp.Evaluate(clickButtonScript(phrases...), &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", errButtonNotFound, strings.Join(phrases, " / "))
	}
	return nil
}

func (v *ValuationFlow) acceptCookies(ctx context.Context, log *slog.Logger) bool {
	if err := v.clickButton(ctx, "Allow all cookies", "Accept", "Allow"); err != nil {
		return false
	}
	log.Debug("Cookie banner accepted")
	_ = retry.Sleep(ctx, time.Second)
	return true
}

// waitForURL polls the tab location until it contains one of fragments.
func waitForURL(ctx context.Context, timeout time.Duration, fragments ...string) error {
	deadline := time.Now().Add(timeout)
	for {
		var location string
		if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
			return err
		}
		for _, f := range fragments {
			if strings.Contains(location, f) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: still at %s", context.DeadlineExceeded, location)
		}
		if err := retry.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}
