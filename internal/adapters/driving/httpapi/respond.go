package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/custodia-labs/ragline/internal/adapters/driving/request"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/logger"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 8 << 20

// errorBody is the JSON shape of a failed request.
type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	Answer  string `json:"answer,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("encoding response: %v", err)
	}
}

// writeError maps err to a status code and a caller-safe message.
// The raw error is logged for server-side failures only.
func writeError(w http.ResponseWriter, r *http.Request, err error, body errorBody) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error().Str("path", r.URL.Path).Err(err).Msg("request failed")
	}
	body.Error = domain.UserMessage(err)
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyProcessing), errors.Is(err, domain.ErrAlreadyEmbedded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrLLMUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and validates it.
// An empty body decodes to the zero value.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError("body", "malformed JSON: %v", err)
	}
	return request.Validate(dst)
}

func boolPtr(b bool) *bool { return &b }

// parseStatuses converts ?status= values to embedding statuses.
func parseStatuses(values []string) ([]domain.EmbeddingStatus, error) {
	statuses := make([]domain.EmbeddingStatus, 0, len(values))
	for _, v := range values {
		st := domain.EmbeddingStatus(v)
		if !st.IsValid() {
			return nil, domain.NewValidationError("status", "unknown embedding status %q", v)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
