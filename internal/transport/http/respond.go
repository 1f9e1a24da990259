package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "pehchan/pkg/domain-errors"
)

// errorBody is the uniform error envelope. Raw upstream error text never
// reaches the client; only the domain message does.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}

	status := dErrors.ToHTTPStatus(de.Code)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "code", string(de.Code), "error", err)
	}

	var body errorBody
	body.Error.Code = string(de.Code)
	body.Error.Message = de.Message
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeValidation, "request body is not valid json")
	}
	return nil
}
