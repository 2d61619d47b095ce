// Package customsoffice looks up temporary storage terminals by the
// customs post code they are attached to.
package customsoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Office describes one temporary storage warehouse attached to a
// customs post.
type Office struct {
	Code          string `json:"code"`
	SVHName       string `json:"svh_name"`
	LicenseNumber string `json:"license_number"`
	LicenseDate   string `json:"license_date"`
	Address       string `json:"address"`
	CountryCode   string `json:"country_code"`
	CountryName   string `json:"country_name"`
	Region        string `json:"region"`
	City          string `json:"city"`
	StreetHouse   string `json:"street_house"`
}

// Directory resolves a customs post code to its storage terminal.
// A miss is not an error: the goods location field simply stays bare.
type Directory interface {
	Lookup(ctx context.Context, code string) (Office, bool, error)
}

// Static is a fixed in-memory directory keyed by post code.
type Static map[string]Office

// Lookup implements Directory.
func (s Static) Lookup(_ context.Context, code string) (Office, bool, error) {
	office, ok := s[strings.TrimSpace(code)]
	return office, ok, nil
}

// HTTPDirectory queries a remote directory service:
// GET {base}/offices/{code} returning an Office as JSON, 404 on a miss.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory builds a client against the given base URL.
func NewHTTPDirectory(baseURL string, client *http.Client) *HTTPDirectory {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDirectory{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Lookup implements Directory.
func (d *HTTPDirectory) Lookup(ctx context.Context, code string) (Office, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Office{}, false, nil
	}

	url := fmt.Sprintf("%s/offices/%s", d.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Office{}, false, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Office{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Office{}, false, nil
	default:
		return Office{}, false, fmt.Errorf("office directory returned %d", resp.StatusCode)
	}

	var office Office
	if err := json.NewDecoder(resp.Body).Decode(&office); err != nil {
		return Office{}, false, err
	}
	return office, true, nil
}
