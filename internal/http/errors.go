package http

import (
	"errors"
	"net/http"

	"github.com/fjod/marketplace/internal/logging"
	"github.com/fjod/marketplace/internal/service"
	"go.uber.org/zap"
)

// handleServiceError converts a service error into a status code. Typed errors put
// their details into data.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *service.ValidationError
		duplicateErr  *service.DuplicatePendingCartError
		itemErr       *service.ItemNotFoundError
		fundsErr      *service.InsufficientFundsError
		stockErr      *service.InsufficientStockError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, validationErr.Error(), map[string]string{"field": validationErr.Field})
	case errors.Is(err, service.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error(), nil)

	case errors.As(err, &itemErr):
		respondError(w, http.StatusNotFound, itemErr.Error(), map[string]string{"product_id": itemErr.ProductID})
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrCartNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, err.Error(), nil)

	case errors.As(err, &duplicateErr):
		respondError(w, http.StatusConflict, duplicateErr.Error(), map[string]string{"cart_id": duplicateErr.CartID})
	case errors.Is(err, service.ErrDuplicatePendingCart),
		errors.Is(err, service.ErrCartAlreadyValidated),
		errors.Is(err, service.ErrDuplicatePeriod):
		respondError(w, http.StatusConflict, err.Error(), nil)

	case errors.As(err, &fundsErr):
		respondError(w, http.StatusUnprocessableEntity, fundsErr.Error(), map[string]float64{
			"balance":  fundsErr.Balance,
			"required": fundsErr.Required,
		})
	case errors.As(err, &stockErr):
		respondError(w, http.StatusUnprocessableEntity, stockErr.Error(), map[string]any{
			"product_id": stockErr.ProductID,
			"name":       stockErr.Name,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.Is(err, service.ErrInsufficientFunds), errors.Is(err, service.ErrInsufficientStock):
		respondError(w, http.StatusUnprocessableEntity, err.Error(), nil)

	default:
		logging.FromContext(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}
