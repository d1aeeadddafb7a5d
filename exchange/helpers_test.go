package exchange

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/polyrabbit/cross-ticker/config"
	xhttp "github.com/polyrabbit/cross-ticker/http"
)

// newTestServer serves the given bodies by request path, anything else is a 404
func newTestServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := bodies[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testQueries(name, baseURL string) map[string]config.SourceQuery {
	cfg := &config.Config{Queries: []*config.SourceQuery{{Name: name, BaseURL: baseURL}}}
	return cfg.GroupQueryByExchange()
}

func testHTTPClient() *xhttp.Client {
	return xhttp.New(&config.Config{Timeout: 5})
}
