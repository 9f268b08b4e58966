package httpadapter

import (
	"net/http"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/infrastructure/resilience"
)

func statusForError(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary), resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
