package customsoffice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLookup(t *testing.T) {
	dir := Static{
		"10228010": {Code: "10228010", SVHName: "ООО ТЕРМИНАЛ", City: "г. Санкт-Петербург"},
	}

	office, ok, err := dir.Lookup(context.Background(), "10228010")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ООО ТЕРМИНАЛ", office.SVHName)

	_, ok, err = dir.Lookup(context.Background(), "99999999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPDirectoryLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/offices/10228010":
			_ = json.NewEncoder(w).Encode(Office{
				Code:          "10228010",
				SVHName:       "ООО ТЕРМИНАЛ",
				LicenseNumber: "10200/100318/10052/2",
				CountryCode:   "RU",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(srv.URL, srv.Client())

	office, ok, err := dir.Lookup(context.Background(), "10228010")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ООО ТЕРМИНАЛ", office.SVHName)
	assert.Equal(t, "10200/100318/10052/2", office.LicenseNumber)

	_, ok, err = dir.Lookup(context.Background(), "10000000")
	require.NoError(t, err)
	assert.False(t, ok)

	// blank code never leaves the process
	_, ok, err = dir.Lookup(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, ok)
}
