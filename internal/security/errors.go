package security

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error envelope of the transfer API. The
// code is a stable machine-readable token; human detail for transfer
// failures travels in the transfer record, not here.
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// WriteJSONError writes the error envelope with the request's correlation
// ID so a rejected call can be matched to its log lines.
func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, code string) {
	cid := CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(CorrelationIDHeader, cid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:         code,
		CorrelationID: cid,
	})
}
