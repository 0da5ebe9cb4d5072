package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/service"
)

const verificationFailedMessage = "payment verification failed, contact support"

// toHTTPError maps service errors onto status codes. Anything unrecognised is
// logged and reported as a bare 500.
func toHTTPError(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, service.ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, service.ErrEmptyCart):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "cart is empty"})
	case errors.Is(err, service.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: verificationFailedMessage})
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrGatewayUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "payment gateway unavailable, please retry"})
	case errors.Is(err, service.ErrAlreadyConfirmed):
		return echo.NewHTTPError(http.StatusConflict, dto.ErrorResponse{Error: "order already confirmed"})
	case errors.Is(err, service.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, dto.ErrorResponse{Error: "order can no longer change to that status"})
	case errors.Is(err, service.ErrVerificationInProgress):
		return echo.NewHTTPError(http.StatusConflict, dto.ErrorResponse{Error: "payment verification already in progress"})
	}

	log.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}
