package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahakem/bluemind-members-sub000/internal/invoice"
)

// RegisterInvoiceRoutes wires invoice status endpoints. Payment confirmation
// lives with the ledger routes since it moves money.
func RegisterInvoiceRoutes(r fiber.Router, h *invoice.Handler) {
	r.Get("/invoices/:invoiceId", h.Get)
	r.Post("/invoices/:invoiceId/transfer", h.Transfer)
	r.Post("/invoices/:invoiceId/cancel", h.Cancel)
	r.Get("/invoices/:invoiceId/qr", h.QR)
}
