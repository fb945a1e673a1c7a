package ocr_space

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/valuation-service/internal/repository"
)

// DefaultEndpoint is the public OCR.space parse API.
const DefaultEndpoint = "https://api.ocr.space/parse/image"

// parseResponse is the subset of the OCR.space response the plate reader needs.
type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// Client calls the OCR.space parse endpoint by image URL.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an OCR client. requestsPerMinute <= 0 disables client-side pacing.
func NewClient(endpoint, apiKey string, requestsPerMinute int, logger *slog.Logger) repository.OCRClient {
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		logger:     logger,
	}
}

// RecognizeText submits imageURL for recognition and returns the first parsed text block.
func (c *Client) RecognizeText(ctx context.Context, imageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	form := url.Values{
		"apikey":            {c.apiKey},
		"url":               {imageURL},
		"language":          {"eng"},
		"isOverlayRequired": {"false"},
		"detectOrientation": {"true"},
		"scale":             {"true"},
		"OCREngine":         {"2"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", repository.ErrOCRProcessing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", repository.ErrOCRProcessing, resp.StatusCode)
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", repository.ErrOCRProcessing, err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("%w: %v", repository.ErrOCRProcessing, parsed.ErrorMessage)
	}
	if len(parsed.ParsedResults) == 0 {
		return "", nil
	}

	text := parsed.ParsedResults[0].ParsedText
	c.logger.Debug("OCR text received", "image", imageURL, "chars", len(text))
	return text, nil
}
