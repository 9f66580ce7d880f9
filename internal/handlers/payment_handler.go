package handlers

import (
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func paymentJSON(txn *models.Transaction) fiber.Map {
	var id string
	if txn.PiPaymentID != nil {
		id = *txn.PiPaymentID
	}
	return fiber.Map{
		"payment_id":  id,
		"transaction": txn,
	}
}

func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req dto.CreatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	txn, err := h.payments.CreatePayment(c.UserContext(), userID, services.CreatePaymentInput{
		Amount:   req.Amount,
		Memo:     req.Memo,
		Metadata: req.Metadata,
	})
	if err != nil {
		return respondError(c, err)
	}
	out := paymentJSON(txn)
	out["success"] = true
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *PaymentHandler) Approve(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	txn, err := h.payments.ApprovePayment(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := paymentJSON(txn)
	out["success"] = true
	return c.JSON(out)
}

func (h *PaymentHandler) Complete(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req dto.CompletePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	res, err := h.payments.CompletePayment(c.UserContext(), userID, c.Params("id"), req.TxID)
	if err != nil {
		return respondError(c, err)
	}
	out := paymentJSON(res.Transaction)
	out["success"] = true
	out["cached"] = res.Cached
	if res.User != nil {
		out["new_balance"] = res.User.Balance
	}
	return c.JSON(out)
}

func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	txn, err := h.payments.CancelPayment(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := paymentJSON(txn)
	out["success"] = true
	return c.JSON(out)
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := h.payments.GetPayment(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := paymentJSON(view.Transaction)
	out["success"] = true
	out["provider"] = view.Provider
	return c.JSON(out)
}
