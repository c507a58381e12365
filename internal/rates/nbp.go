// Package rates fetches mid exchange rates from the NBP (Narodowy Bank
// Polski) public API for the optional price conversion step.
//
// The client performs a single lookup per call with no caching and no
// retry; transient failures surface to the caller, which simply skips the
// conversion option.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the NBP table-A endpoint for averaged mid rates.
const DefaultBaseURL = "https://api.nbp.pl/api/exchangerates/rates/a"

// ErrUnknownCurrency is returned when NBP has no table-A rate for the
// requested currency code.
var ErrUnknownCurrency = errors.New("no exchange rate for currency")

// Rate is one resolved exchange rate to PLN.
type Rate struct {
	Currency      string  `json:"currency"`
	Mid           float64 `json:"rate"`
	EffectiveDate string  `json:"date,omitempty"`
}

// Client queries the NBP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL with the given request timeout.
// An empty baseURL falls back to DefaultBaseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// MidRate returns the mid rate for converting code into PLN. PLN itself
// short-circuits to 1 without a network call.
func (c *Client) MidRate(ctx context.Context, code string) (Rate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Rate{}, errors.New("currency code is required")
	}
	if code == "PLN" {
		return Rate{Currency: "PLN", Mid: 1}, nil
	}

	url := fmt.Sprintf("%s/%s/?format=json", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Rate{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Rate{}, fmt.Errorf("nbp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Rate{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	if resp.StatusCode != http.StatusOK {
		return Rate{}, fmt.Errorf("nbp responded with status %d", resp.StatusCode)
	}

	var payload struct {
		Rates []struct {
			Mid           float64 `json:"mid"`
			EffectiveDate string  `json:"effectiveDate"`
		} `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Rate{}, fmt.Errorf("nbp response decode: %w", err)
	}
	if len(payload.Rates) == 0 || payload.Rates[0].Mid == 0 {
		return Rate{}, fmt.Errorf("nbp response missing mid rate for %s", code)
	}

	return Rate{
		Currency:      code,
		Mid:           payload.Rates[0].Mid,
		EffectiveDate: payload.Rates[0].EffectiveDate,
	}, nil
}
