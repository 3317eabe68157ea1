package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeJSON encodes v before writing the status, so an unencodable value
// becomes a 500 with an error body instead of an empty response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := encodeJSON(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = encodeJSON(errorBody{
			Error:  "failed to encode response: " + err.Error(),
			Reason: string(core.ReasonEngineFailure),
		})
	}
	writeBody(w, status, body)
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, reason, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Reason: reason})
}

// writeFailure reports a sandbox error with the status code for its reason.
func writeFailure(w http.ResponseWriter, err error) {
	reason := core.ReasonOf(err)
	writeError(w, StatusOf(reason), string(reason), core.MessageOf(err))
}

// StatusOf maps a failure reason to an HTTP status code.
func StatusOf(reason core.Reason) int {
	switch reason {
	case "":
		return http.StatusOK
	case core.ReasonNotReady:
		return http.StatusConflict
	case core.ReasonInvalidInput, core.ReasonEmptyDataset:
		return http.StatusBadRequest
	case core.ReasonQueryFailed:
		return http.StatusUnprocessableEntity
	case core.ReasonTimeout:
		return http.StatusGatewayTimeout
	case core.ReasonCanceled:
		return http.StatusRequestTimeout
	case core.ReasonTerminated:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
