// Package http is the JSON API of the storefront: cart, customer orders,
// admin order management and authentication.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/remote"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

var validate = validator.New(validator.WithRequiredStructEnabled())

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation failed",
				Code:    "validation_failed",
				Details: describe(fieldErrs),
			})
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// handleError maps service errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var transitionErr *orders.TransitionError
	var statusErr *remote.StatusError

	switch {
	case errors.As(err, &transitionErr):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, orders.ErrNoRefundRequest),
		errors.Is(err, orders.ErrNoReturnShippingInfo):
		respondError(w, http.StatusConflict, "precondition_failed", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, catalog.ErrReviewNotFound):
		respondError(w, http.StatusNotFound, "not_found", "review not found")
	case errors.Is(err, catalog.ErrInvalidReview):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, session.ErrAccountExists):
		respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, remote.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrInvalidPaymentStatus),
		errors.Is(err, orders.ErrInvalidDecision):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, session.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, session.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid session")
	case errors.Is(err, remote.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "remote collection unavailable")
	case errors.As(err, &statusErr):
		respondError(w, http.StatusBadGateway, "bad_gateway", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
