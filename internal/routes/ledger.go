package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahakem/bluemind-members-sub000/internal/ledger"
)

// RegisterLedgerRoutes wires club and member balance endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/club/balance", h.ClubBalance)
	r.Post("/club/funds", h.AddClubFunds)
	r.Post("/club/expenses", h.PayExpense)
	r.Get("/club/expenses", h.Expenses)
	r.Get("/club/transactions", h.ClubTransactions)
	r.Get("/club/reconciliation", h.Reconciliation)

	r.Post("/members/:memberId/refunds", h.IssueRefund)
	r.Post("/members/:memberId/credits", h.AddMemberCredit)
	r.Get("/members/:memberId/balance", h.MemberBalance)
	r.Get("/members/:memberId/transactions", h.MemberTransactions)

	r.Post("/invoices/:invoiceId/confirm", h.ConfirmInvoice)
}
