package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/session"
)

func testManager(t *testing.T, baseURL string) *session.Manager {
	t.Helper()
	creds := session.Credentials{TaxCode: "0100109106", Username: "user", Password: "pass"}
	return session.NewManagerWithBaseURL(baseURL, creds, session.NewMemoryStore(), nil)
}

func dateRange(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	from, err := time.Parse("2006-01-02", "2023-01-01")
	require.NoError(t, err)
	to, err := time.Parse("2006-01-02", "2023-01-31")
	require.NoError(t, err)
	return from, to
}

func TestQueryExpression(t *testing.T) {
	from, to := dateRange(t)
	window := "tdlap=ge=01/01/2023T00:00:00;tdlap=le=31/01/2023T23:59:59"

	tests := []struct {
		name         string
		query        Query
		cashRegister bool
		want         string
	}{
		{
			name:  "purchase defaults expand processed states",
			query: Query{From: from, To: to, Tab: hddt.Purchase, ProcessingResult: AllProcessingResults},
			want:  window + ";ttxly=in=(5,6,8)",
		},
		{
			name:  "sold defaults keep everything",
			query: Query{From: from, To: to, Tab: hddt.Sold, ProcessingResult: AllProcessingResults},
			want:  window,
		},
		{
			name:  "explicit processing result",
			query: Query{From: from, To: to, Tab: hddt.Purchase, ProcessingResult: 6},
			want:  window + ";ttxly==6",
		},
		{
			name:  "status filter",
			query: Query{From: from, To: to, Tab: hddt.Sold, Status: 1, ProcessingResult: AllProcessingResults},
			want:  window + ";tthai==1",
		},
		{
			name:  "payment order",
			query: Query{From: from, To: to, Tab: hddt.Sold, ProcessingResult: AllProcessingResults, PaymentOrder: true},
			want:  window + ";unhiem==1",
		},
		{
			name:         "payment order never applies to cash registers",
			query:        Query{From: from, To: to, Tab: hddt.Sold, ProcessingResult: AllProcessingResults, PaymentOrder: true},
			cashRegister: true,
			want:         window,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Expression(tt.cashRegister))
		})
	}
}

func TestListerFetchFollowsCursor(t *testing.T) {
	// three pages chained by the state cursor
	pages := map[string]struct {
		next     string
		invoices []string
	}{
		"":   {next: "s1", invoices: []string{"1", "2"}},
		"s1": {next: "s2", invoices: []string{"3", "4"}},
		"s2": {next: "", invoices: []string{"5", "6"}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query/invoices/purchase", r.URL.Path)
		assert.Equal(t, "tdlap:desc,khmshdon:asc,shdon:desc", r.URL.Query().Get("sort"))
		assert.Equal(t, "50", r.URL.Query().Get("size"))
		assert.NotEmpty(t, r.URL.Query().Get("search"))

		page, ok := pages[r.URL.Query().Get("state")]
		require.True(t, ok, "unexpected cursor %q", r.URL.Query().Get("state"))

		datas := make([]map[string]interface{}, 0, len(page.invoices))
		for _, no := range page.invoices {
			datas = append(datas, map[string]interface{}{
				"nbmst": "0100109106", "khhdon": "C23TAA", "shdon": no, "khmshdon": 1,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"total": 6, "state": page.next, "datas": datas,
		})
	}))
	defer srv.Close()

	from, to := dateRange(t)
	lister := NewLister(testManager(t, srv.URL))

	raws, total, err := lister.Fetch(context.Background(),
		Query{From: from, To: to, Tab: hddt.Purchase, ProcessingResult: AllProcessingResults}, false)

	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, raws, 6)
	for i, raw := range raws {
		assert.Equal(t, fmt.Sprintf("%d", i+1), raw.InvoiceNo, "arrival order preserved")
	}
}

func TestListerFetchProbeStopsAfterOnePage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "1", r.URL.Query().Get("size"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"total": 40, "state": "more", "datas": []map[string]interface{}{{"shdon": "1"}},
		})
	}))
	defer srv.Close()

	from, to := dateRange(t)
	lister := NewLister(testManager(t, srv.URL))

	raws, total, err := lister.Fetch(context.Background(),
		Query{From: from, To: to, Tab: hddt.Purchase, ProcessingResult: AllProcessingResults, PageSize: 1}, false)

	require.NoError(t, err)
	assert.Equal(t, 40, total)
	assert.Len(t, raws, 1)
	assert.Equal(t, 1, calls)
}

func TestListerFetchRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"total": 1, "state": "", "datas": []map[string]interface{}{{"shdon": "1"}},
		})
	}))
	defer srv.Close()

	from, to := dateRange(t)
	lister := NewLister(testManager(t, srv.URL))

	raws, _, err := lister.Fetch(context.Background(),
		Query{From: from, To: to, Tab: hddt.Sold, ProcessingResult: AllProcessingResults}, false)

	require.NoError(t, err)
	assert.Len(t, raws, 1)
	assert.Equal(t, 2, calls)
}

func TestListerFetchCashRegisterPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sco-query/invoices/sold", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total": 0, "state": "", "datas": nil})
	}))
	defer srv.Close()

	from, to := dateRange(t)
	lister := NewLister(testManager(t, srv.URL))

	_, _, err := lister.Fetch(context.Background(),
		Query{From: from, To: to, Tab: hddt.Sold, ProcessingResult: AllProcessingResults}, true)
	require.NoError(t, err)
}
