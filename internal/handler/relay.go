package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"event-relay/internal/model"
	"event-relay/internal/service"
)

// RelayHandler accepts forward directives and relays them.
type RelayHandler struct {
	service *service.RelayService
	logger  *slog.Logger
}

// NewRelayHandler creates a RelayHandler.
func NewRelayHandler(svc *service.RelayService, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		service: svc,
		logger:  logger.With("component", "relay_handler"),
	}
}

// ForwardEvent decodes a directive, relays it and writes the composed reply.
// The body is read as JSON whatever the declared Content-Type.
func (h *RelayHandler) ForwardEvent(c echo.Context) error {
	var req model.ForwardEventRequest
	if err := c.Echo().JSONSerializer.Deserialize(c, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("decode directive", "err", err)
		return c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid JSON body"})
	}

	h.logger.Debug("directive received",
		"url", req.URL,
		"method", req.UseRequest,
		"has_return_address", req.UseReturnAddress != nil && *req.UseReturnAddress != "",
	)

	reply, err := h.service.Relay(c.Request().Context(), &req)
	if err != nil {
		return h.mapError(c, &req, err)
	}
	return c.JSON(reply.StatusCode, reply.Body)
}

func (h *RelayHandler) mapError(c echo.Context, req *model.ForwardEventRequest, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		h.logger.Warn("invalid directive", "field", ve.Field)
		return c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error: ve.Message,
			UseID: req.UseID,
		})
	}

	if errors.Is(err, service.ErrRelayBusy) {
		return c.JSON(http.StatusTooManyRequests, model.ErrorResponse{
			Error: "Too many in-flight relays",
			UseID: req.UseID,
		})
	}

	h.logger.Error("relay error", "err", err)
	return c.JSON(http.StatusInternalServerError, model.ErrorResponse{
		Error: "Failed to forward request",
		UseID: req.UseID,
	})
}
