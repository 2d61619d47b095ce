// Package rates fetches historical central bank exchange rates for the
// declaration date. Rates are quoted per unit of foreign currency in
// RUB; the daily feed publishes Value per Nominal units.
package rates

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	dec "github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/taridex/declaration-processor/internal/decimal"
	"github.com/taridex/declaration-processor/internal/model"
)

// Source supplies the RUB rate of one currency on one date.
// Date is DD.MM.YYYY, currency an ISO alpha code.
type Source interface {
	Rate(ctx context.Context, date, currency string) (dec.Decimal, error)
}

// DefaultBaseURL is the central bank endpoint serving the daily feed.
const DefaultBaseURL = "https://www.cbr.ru"

// CBRClient reads the XML_daily feed. The whole day's table is fetched
// once and memoized, so resolving several currencies for one
// declaration costs a single request.
type CBRClient struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	cache map[string]map[string]dec.Decimal
}

// NewCBRClient builds a client against the given base URL. An empty
// base URL selects the production endpoint.
func NewCBRClient(baseURL string, client *http.Client) *CBRClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &CBRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cache:   map[string]map[string]dec.Decimal{},
	}
}

type dailyFeed struct {
	Valutes []struct {
		CharCode string `xml:"CharCode"`
		Nominal  string `xml:"Nominal"`
		Value    string `xml:"Value"`
	} `xml:"Valute"`
}

// Rate returns the per-unit RUB rate of the currency on the date.
// RUB itself is always 1.
func (c *CBRClient) Rate(ctx context.Context, date, currency string) (dec.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return decimal.Zero, model.NewRateUnavailableError(date, currency, nil)
	}
	if currency == "RUB" || currency == "RUR" {
		return dec.NewFromInt(1), nil
	}

	table, err := c.table(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := table[currency]
	if !ok {
		return decimal.Zero, model.NewRateUnavailableError(date, currency, nil)
	}
	return rate, nil
}

func (c *CBRClient) table(ctx context.Context, date string) (map[string]dec.Decimal, error) {
	c.mu.Lock()
	if cached, ok := c.cache[date]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	table, err := c.fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[date] = table
	c.mu.Unlock()
	return table, nil
}

func (c *CBRClient) fetch(ctx context.Context, date string) (map[string]dec.Decimal, error) {
	// DD.MM.YYYY on our side, DD/MM/YYYY on the wire
	url := fmt.Sprintf("%s/scripts/XML_daily.asp?date_req=%s",
		c.baseURL, strings.ReplaceAll(date, ".", "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewRateUnavailableError(date, "", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, model.NewRateUnavailableError(date, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewRateUnavailableError(date, "",
			fmt.Errorf("daily feed returned %d", resp.StatusCode))
	}

	var feed dailyFeed
	decoder := xml.NewDecoder(resp.Body)
	decoder.CharsetReader = charsetReader
	if err := decoder.Decode(&feed); err != nil {
		return nil, model.NewRateUnavailableError(date, "", err)
	}

	table := make(map[string]dec.Decimal, len(feed.Valutes))
	for _, v := range feed.Valutes {
		value := decimal.FromAny(v.Value)
		nominal := decimal.FromAny(v.Nominal)
		if value.IsZero() || nominal.IsZero() {
			continue
		}
		table[strings.ToUpper(v.CharCode)] = value.Div(nominal)
	}
	return table, nil
}

// charsetReader handles the windows-1251 encoding the daily feed is
// served in.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	case "utf-8", "":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}

// Static is a fixed in-memory rate table keyed by date then currency.
// It serves tests and air-gapped deployments.
type Static map[string]map[string]dec.Decimal

// Rate implements Source.
func (s Static) Rate(_ context.Context, date, currency string) (dec.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "RUB" || currency == "RUR" {
		return dec.NewFromInt(1), nil
	}
	if rate, ok := s[date][currency]; ok {
		return rate, nil
	}
	return decimal.Zero, model.NewRateUnavailableError(date, currency, nil)
}
