package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"product-composite/internal/fault"
	"product-composite/internal/logger"
)

const problemContentType = "application/problem+json"

// Problem is the error body of every failed request.
type Problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Dependency    string `json:"dependency,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// errMalformedBody marks request bodies that are not valid JSON.
var errMalformedBody = errors.New("malformed JSON body")

// StatusFor maps a classified failure to the HTTP status returned to callers.
func StatusFor(err error) int {
	if errors.Is(err, errMalformedBody) {
		return http.StatusBadRequest
	}
	switch fault.KindOf(err) {
	case fault.InvalidInput:
		return http.StatusUnprocessableEntity
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Timeout:
		return http.StatusGatewayTimeout
	case fault.CircuitOpen:
		return http.StatusServiceUnavailable
	case fault.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, log logger.Logger, correlationID string, err error) {
	status := StatusFor(err)
	p := Problem{
		Type:          "about:blank",
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detail(err, status),
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}
	if kind := fault.KindOf(err); kind != fault.Unknown {
		p.Kind = kind.String()
		p.Dependency = fault.DependencyOf(err)
	}
	respondProblem(w, log, p)
}

// detail hides the text of unclassified errors from callers.
func detail(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return err.Error()
}

func respondProblem(w http.ResponseWriter, log logger.Logger, p Problem) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error("failed to encode error response", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, log logger.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}
