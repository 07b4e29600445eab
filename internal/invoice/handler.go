package invoice

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahakem/bluemind-members-sub000/internal/middleware"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

const defaultQRSize = 256

// Handler exposes invoice status endpoints.
type Handler struct {
	service     *Service
	beneficiary Beneficiary
}

// NewHandler builds an invoice HTTP handler. beneficiary is the club account
// printed into payment QR codes.
func NewHandler(service *Service, beneficiary Beneficiary) *Handler {
	return &Handler{service: service, beneficiary: beneficiary}
}

type invoiceResponse struct {
	ID                  string       `json:"id"`
	MemberID            string       `json:"memberId,omitempty"`
	MemberName          string       `json:"memberName,omitempty"`
	Amount              money.Amount `json:"amount"`
	Status              Status       `json:"status"`
	Reference           string       `json:"uniquePaymentReference,omitempty"`
	IsTopUp             bool         `json:"isTopUp"`
	Type                string       `json:"type,omitempty"`
	DueDate             *time.Time   `json:"dueDate,omitempty"`
	PaidAt              *time.Time   `json:"paidAt,omitempty"`
	TransferInitiatedAt *time.Time   `json:"transferInitiatedAt,omitempty"`
	CancelledAt         *time.Time   `json:"cancelledAt,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:                  inv.ID,
		MemberID:            inv.MemberID,
		MemberName:          inv.MemberName,
		Amount:              inv.Amount,
		Status:              inv.Status,
		Reference:           inv.Reference,
		IsTopUp:             inv.IsTopUp,
		Type:                inv.Type,
		DueDate:             optionalTime(inv.DueDate),
		PaidAt:              optionalTime(inv.PaidAt),
		TransferInitiatedAt: optionalTime(inv.TransferInitiatedAt),
		CancelledAt:         optionalTime(inv.CancelledAt),
	}
}

// Get returns one invoice.
func (h *Handler) Get(c *fiber.Ctx) error {
	inv, err := h.service.Get(c.UserContext(), c.Params("invoiceId"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(inv))
}

// Transfer records that the member has started a bank transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return err
	}
	inv, err := h.service.MarkTransferInitiated(c.UserContext(), c.Params("invoiceId"), actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(inv))
}

// Cancel withdraws a pending invoice.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return err
	}
	inv, err := h.service.Cancel(c.UserContext(), c.Params("invoiceId"), actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(inv))
}

// QR renders the EPC payment QR code as a PNG. The size query parameter
// sets the edge length in pixels.
func (h *Handler) QR(c *fiber.Ctx) error {
	size := c.QueryInt("size", defaultQRSize)
	if size < 64 || size > 1024 {
		return fiber.NewError(http.StatusBadRequest, "size must be between 64 and 1024")
	}
	inv, err := h.service.Get(c.UserContext(), c.Params("invoiceId"))
	if err != nil {
		return err
	}
	png, err := PaymentQR(inv, h.beneficiary, size)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(http.StatusOK).Send(png)
}
