package httpapi

import (
	"database/sql"
	"net/http"
)

// NewMux returns a mux carrying the operational routes. Feature modules
// register their own routes on it.
func NewMux(db *sql.DB, metrics *Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	return mux
}
