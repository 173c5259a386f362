package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-snapshot-monitor/internal/format"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=source_test -destination=mock_http_client_test.go -source=alphavantage.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AlphaVantage queries the GLOBAL_QUOTE endpoint
type AlphaVantage struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
}

// AlphaVantageOption is a configuration option for the Alpha Vantage source
type AlphaVantageOption func(*AlphaVantage)

// WithBaseURL sets the base URL for the API
func WithBaseURL(baseURL string) AlphaVantageOption {
	return func(a *AlphaVantage) {
		a.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API
func WithHTTPClient(httpClient HTTPClient) AlphaVantageOption {
	return func(a *AlphaVantage) {
		a.httpClient = httpClient
	}
}

// NewAlphaVantage creates an Alpha Vantage source. An empty key is an
// error; callers decide whether the source is enabled.
func NewAlphaVantage(apiKey string, opts ...AlphaVantageOption) (*AlphaVantage, error) {
	if apiKey == "" {
		return nil, errors.New("alpha vantage api key is required")
	}
	a := &AlphaVantage{
		apiKey:     apiKey,
		baseURL:    alphaVantageBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *AlphaVantage) Name() string { return AlphaVantageName }

type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
}

// Fetch returns the price and previous close of the symbol. Alpha Vantage
// does not report a company name.
func (a *AlphaVantage) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)
	query.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/query?%s", a.baseURL, query.Encode()), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "alpha vantage %s", symbol)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, errors.Errorf("alpha vantage %s: rate limited", symbol)
	default:
		return nil, errors.Errorf("alpha vantage %s: unexpected status code: %d", symbol, res.StatusCode)
	}

	var body globalQuoteResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, errors.Wrapf(err, "alpha vantage %s: decoding response", symbol)
	}

	switch {
	case body.ErrorMessage != "":
		return nil, errors.Errorf("alpha vantage %s: %s", symbol, body.ErrorMessage)
	case body.Note != "":
		return nil, errors.Errorf("alpha vantage %s: rate limited: %s", symbol, body.Note)
	case body.Information != "":
		return nil, errors.Errorf("alpha vantage %s: %s", symbol, body.Information)
	case len(body.GlobalQuote) == 0:
		return nil, errors.Wrapf(ErrNoQuote, "alpha vantage %s", symbol)
	}

	q := &models.Quote{
		Price:         parseField(body.GlobalQuote, "05. price"),
		PreviousClose: parseField(body.GlobalQuote, "08. previous close"),
	}
	if !q.Price.Valid && !q.PreviousClose.Valid {
		return nil, errors.Wrapf(ErrNoQuote, "alpha vantage %s", symbol)
	}
	return q, nil
}

func parseField(fields map[string]string, key string) decimal.NullDecimal {
	raw, ok := fields[key]
	if !ok {
		return decimal.NullDecimal{}
	}
	v, err := format.ParsePrice(raw)
	if err != nil || !v.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}
