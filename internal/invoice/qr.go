package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

// Beneficiary is the club bank account printed into payment QR codes.
type Beneficiary struct {
	Name string
	IBAN string
	BIC  string
}

var ErrNoBeneficiary = errors.New("club bank account is not configured")

// EPCPayload renders the EPC069-12 ("GiroCode") text for a SEPA credit
// transfer paying inv, using the payment reference as remittance text so the
// incoming transfer can be matched to the invoice.
func EPCPayload(inv Invoice, b Beneficiary) (string, error) {
	iban := strings.ReplaceAll(strings.ToUpper(b.IBAN), " ", "")
	if iban == "" || strings.TrimSpace(b.Name) == "" {
		return "", ErrNoBeneficiary
	}
	if !inv.Amount.IsPositive() || inv.Amount.Exceeds(money.MaxAmount) {
		return "", fmt.Errorf("%w: amount %s cannot be encoded", ErrMalformed, inv.Amount)
	}
	remittance := inv.Reference
	if remittance == "" {
		remittance = inv.ID
	}

	lines := []string{
		"BCD",
		"002",
		"1",
		"SCT",
		strings.ToUpper(strings.TrimSpace(b.BIC)),
		truncate(b.Name, 70),
		iban,
		"EUR" + inv.Amount.String(),
		"",
		"",
		truncate(remittance, 140),
	}
	return strings.Join(lines, "\n"), nil
}

// PaymentQR returns a PNG of the EPC QR code for inv. Unpaid invoices only.
func PaymentQR(inv Invoice, b Beneficiary, size int) ([]byte, error) {
	if inv.Status.Terminal() {
		return nil, &TransitionError{InvoiceID: inv.ID, From: inv.Status, To: StatusPaid}
	}
	payload, err := EPCPayload(inv, b)
	if err != nil {
		return nil, err
	}

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
