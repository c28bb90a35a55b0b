package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/models"
	"github.com/adilrza0/qusamba-sub001/internal/repository"
	"github.com/adilrza0/qusamba-sub001/internal/service"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(models.ErrValidation, "invalid body: %v", err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateCode),
		errors.Is(err, repository.ErrUsageExhausted),
		errors.Is(err, service.ErrCouponRejected):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps service errors onto status codes. Internal failures are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, code, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
