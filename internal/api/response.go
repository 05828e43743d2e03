package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/money-transfer/internal/security"
)

// writeJSON renders a response body, echoing the correlation ID header so
// transfer outcomes can be matched to request logs. Encoding failures are
// ignored: the status line is already committed and the payloads here are
// plain structs.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if cid := security.CorrelationIDFromContext(r.Context()); cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
