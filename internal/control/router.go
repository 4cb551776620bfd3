package control

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/logflow/internal/httpmw"
)

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errMissingSourceID  = errors.New("missing id query parameter")
)

// NewRouter constructs the control API's ServeMux, wrapped in the
// request-ID middleware so every response carries an X-Request-ID.
func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/readyz", h.Readyz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/sources", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListSources(w, r)
		case http.MethodPost:
			h.CreateSource(w, r)
		case http.MethodPut:
			h.UpdateSource(w, r)
		case http.MethodDelete:
			h.DeleteSource(w, r)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		}
	})
	mux.HandleFunc("/sources/metrics", h.SourceMetrics)
	mux.HandleFunc("/reload", h.Reload)

	return httpmw.RequestID(mux)
}
