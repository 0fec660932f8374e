package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/folio/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.New(logger.Config{Level: "error"})
	return NewClientWithBaseURL(server.URL, log)
}

func TestFetchPrice_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"AAPL","regularMarketPrice":201.55,"currency":"USD"}
		],"error":null}}`))
	})

	price, currency, err := client.FetchPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 201.55, price)
	assert.Equal(t, "USD", currency)
}

func TestFetchPrice_MissingCurrencyDefaultsToUSD(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"VTI","regularMarketPrice":230.1}
		],"error":null}}`))
	})

	_, currency, err := client.FetchPrice(context.Background(), "VTI")
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
}

func TestFetchPrice_NonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})

	_, _, err := client.FetchPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchPrice_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[`))
	})

	_, _, err := client.FetchPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestFetchPrice_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[],"error":{"code":"Bad Request"}}}`))
	})

	_, _, err := client.FetchPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yahoo API error")
}

func TestFetchPrice_RejectsBadQuotes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty result list", `{"quoteResponse":{"result":[],"error":null}}`},
		{"missing price field", `{"quoteResponse":{"result":[{"symbol":"ZZZZ","currency":"USD"}],"error":null}}`},
		{"zero price", `{"quoteResponse":{"result":[{"symbol":"ZZZZ","regularMarketPrice":0,"currency":"USD"}],"error":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, _, err := client.FetchPrice(context.Background(), "ZZZZ")
			assert.Error(t, err)
		})
	}
}
