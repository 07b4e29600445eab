package ledger

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ahakem/bluemind-members-sub000/internal/middleware"
)

// Handler exposes ledger HTTP endpoints. Errors are returned unchanged and
// mapped to status codes by the application's error handler.
type Handler struct {
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ClubBalance returns the committed club balance.
func (h *Handler) ClubBalance(c *fiber.Ctx) error {
	balance, err := h.service.GetClubBalance(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(balance)
}

// AddClubFunds records money added to the club by hand.
func (h *Handler) AddClubFunds(c *fiber.Ctx) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return err
	}
	var req AddClubFundsInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.AddClubFunds(c.UserContext(), req, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// PayExpense records a paid expense.
func (h *Handler) PayExpense(c *fiber.Ctx) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return err
	}
	var req PayExpenseInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.PayExpense(c.UserContext(), req, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// Expenses lists paid expenses, newest first.
func (h *Handler) Expenses(c *fiber.Ctx) error {
	expenses, err := h.service.ListExpenses(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"expenses": expenses})
}

// ClubTransactions lists club entries, newest first.
func (h *Handler) ClubTransactions(c *fiber.Ctx) error {
	txs, err := h.service.ListClubTransactions(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txs})
}

// Reconciliation compares balances with their transaction history.
func (h *Handler) Reconciliation(c *fiber.Ctx) error {
	report, err := h.service.Reconcile(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balanced": report.Balanced(),
		"report":   report,
	})
}

type refundRequest struct {
	Amount          json.Number `json:"amount"`
	Reason          string      `json:"reason"`
	ToMemberBalance bool        `json:"toMemberBalance"`
}

// IssueRefund refunds the member named in the path.
func (h *Handler) IssueRefund(c *fiber.Ctx) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return err
	}
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.IssueRefund(c.UserContext(), IssueRefundInput{
		MemberID:        c.Params("memberId"),
		Amount:          req.Amount,
		Reason:          req.Reason,
		ToMemberBalance: req.ToMemberBalance,
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(res)
}

type creditRequest struct {
	Amount json.Number `json:"amount"`
	Reason string      `json:"reason"`
}

// AddMemberCredit credits the member named in the path.
func (h *Handler) AddMemberCredit(c *fiber.Ctx) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return err
	}
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.AddMemberCredit(c.UserContext(), AddMemberCreditInput{
		MemberID: c.Params("memberId"),
		Amount:   req.Amount,
		Reason:   req.Reason,
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// MemberBalance returns a member's prepaid balance.
func (h *Handler) MemberBalance(c *fiber.Ctx) error {
	memberID := c.Params("memberId")
	balance, err := h.service.GetMemberBalance(c.UserContext(), memberID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"memberId": memberID,
		"balance":  balance,
	})
}

// MemberTransactions lists a member's entries, newest first.
func (h *Handler) MemberTransactions(c *fiber.Ctx) error {
	txs, err := h.service.ListMemberTransactions(c.UserContext(), c.Params("memberId"), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txs})
}

// ConfirmInvoice confirms receipt of an invoice payment.
func (h *Handler) ConfirmInvoice(c *fiber.Ctx) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return err
	}
	res, err := h.service.ConfirmInvoicePayment(c.UserContext(), c.Params("invoiceId"), actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}
