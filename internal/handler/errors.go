package handler

import (
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

// statusForKind maps a typed error kind (§7) onto its HTTP status.
func statusForKind(k errs.Kind) int {
	switch k {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindQuota:
		return http.StatusTooManyRequests
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindExtraction:
		return http.StatusUnprocessableEntity
	case errs.KindOracleUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindOracleSchema:
		return http.StatusBadGateway
	case errs.KindCancelled:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// respondErr renders err as the envelope shape, classifying it via errs.As
// when possible and falling back to a generic 500 otherwise.
func respondErr(w http.ResponseWriter, err error) {
	if e, ok := errs.As(err); ok {
		respondJSON(w, statusForKind(e.Kind), envelope{Success: false, Error: e.Message})
		return
	}
	respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "internal error"})
}
