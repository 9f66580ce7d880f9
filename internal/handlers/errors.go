package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/session"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type validator interface {
	Validate() error
}

var (
	badRequest = []error{
		services.ErrValidation,
		services.ErrInsufficientFunds,
		services.ErrLevelTooLow,
		services.ErrPremiumRequired,
		services.ErrItemUnavailable,
		services.ErrQuestInactive,
	}
	unauthorized = []error{
		services.ErrAuthentication,
		services.ErrInvalidToken,
	}
	notFound = []error{
		services.ErrUserNotFound,
		services.ErrQuestNotFound,
		services.ErrQuestNotAccepted,
		services.ErrItemNotFound,
		services.ErrTransactionNotFound,
		services.ErrPaymentNotFound,
		services.ErrSettingNotFound,
	}
	conflict = []error{
		services.ErrAlreadyClaimed,
		services.ErrNotCompleted,
		services.ErrQuestExpired,
		services.ErrQuestActive,
		services.ErrQuestCooldown,
		services.ErrQuestAlreadyCompleted,
		services.ErrRewardsUnclaimed,
		services.ErrInvalidState,
		services.ErrDuplicatePayment,
		services.ErrUsernameTaken,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func statusFor(err error) int {
	switch {
	case isAny(err, badRequest):
		return fiber.StatusBadRequest
	case isAny(err, unauthorized):
		return fiber.StatusUnauthorized
	case isAny(err, notFound):
		return fiber.StatusNotFound
	case isAny(err, conflict):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrUpstream):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError maps a service error onto the JSON error envelope.
func respondError(c *fiber.Ctx, err error) error {
	var verr *dto.ValidationErrors
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: verr.Messages})
	}

	status := statusFor(err)
	if status < fiber.StatusInternalServerError {
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	attrs := []any{"method", c.Method(), "path", c.Path(), "error", err.Error()}
	if id, ok := c.Locals("requestid").(string); ok {
		attrs = append(attrs, "request_id", id)
	}
	if userID, uerr := session.GetUserID(c); uerr == nil {
		attrs = append(attrs, "user_id", userID.String())
	}
	slog.Error("request failed", attrs...)

	hub := sentryfiber.GetHubFromContext(c)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)

	message := "Internal server error"
	if status == fiber.StatusBadGateway {
		message = "Payment provider unavailable, please retry"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: message})
}

// parseBody decodes the JSON body into req and runs its Validate.
func parseBody(c *fiber.Ctx, req validator) error {
	if err := c.BodyParser(req); err != nil {
		return &dto.ValidationErrors{Messages: []string{"Invalid request body"}}
	}
	return req.Validate()
}

func parseQuery(c *fiber.Ctx, q validator) error {
	if err := c.QueryParser(q); err != nil {
		return &dto.ValidationErrors{Messages: []string{"Invalid query parameters"}}
	}
	return q.Validate()
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, &dto.ValidationErrors{Messages: []string{name + " must be a valid UUID"}}
	}
	return id, nil
}

func currentUser(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := session.GetUserID(c)
	if err != nil {
		return uuid.Nil, services.ErrAuthentication
	}
	return id, nil
}
