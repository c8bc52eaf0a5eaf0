package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("abc123"))
	})
	mux.HandleFunc("/v8/finance/chart/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartFixture))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(summaryFixture))
	})
	// The auth host replies with an error page in production too; only the
	// cookies matter.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "finance cookies", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func sessionClient(t *testing.T) *Client {
	srv := sessionServer(t)
	return NewClient(&Config{
		ChartBaseURL: srv.URL,
		QuoteBaseURL: srv.URL,
		AuthBaseURL:  srv.URL,
		RateLimit:    600000,
	})
}

func TestClientSession(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch without a session is an error", func(t *testing.T) {
		client := sessionClient(t)

		_, err := client.FetchQuote(ctx, 1, "AAPL")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no session")
	})

	t.Run("connect then fetch", func(t *testing.T) {
		client := sessionClient(t)

		require.NoError(t, client.Connect(ctx))

		quote, err := client.FetchQuote(ctx, 7, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 7, quote.StockID)
		assert.Equal(t, "AAPL", quote.Symbol)
	})

	t.Run("session renewal during concurrent fetches", func(t *testing.T) {
		client := sessionClient(t)
		require.NoError(t, client.Connect(ctx))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_, err := client.FetchQuote(ctx, 1, "AAPL")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, client.Connect(ctx))
			}
		}()
		wg.Wait()
	})
}
