package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale = 2

var (
	// ErrInvalidAmount is returned when text cannot be parsed as a finite decimal.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrTooPrecise is returned when an amount carries more than two fractional digits.
	ErrTooPrecise = errors.New("amount has more than two decimal places")
	// ErrNotPositive is returned when a strictly positive amount was required.
	ErrNotPositive = errors.New("amount must be greater than zero")
	// ErrOutOfRange is returned when an amount's magnitude exceeds MaxAmount.
	ErrOutOfRange = errors.New("amount is out of range")
)

// maxTextLen bounds the accepted text so exponent and coefficient stay small.
const maxTextLen = 64

// Amount is a signed monetary value in the club's currency, kept at cent precision.
type Amount struct {
	d decimal.Decimal
}

var (
	// Zero is the zero amount.
	Zero = Amount{}
	// MaxAmount is the largest magnitude Parse accepts for a single amount.
	MaxAmount = Amount{d: decimal.New(99999999999, -Scale)}
	// MaxBalance bounds every stored balance. Below it a float64 still
	// resolves to the exact cent, so documents never drift.
	MaxBalance = Amount{d: decimal.New(1, 13)}
)

// FromCents builds an amount from an integral number of cents.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -Scale)}
}

// FromDecimal rounds d to cents.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Scale)}
}

// FromFloat converts a stored floating point value, rounding to cents.
func FromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Amount{}, ErrInvalidAmount
	}
	return FromDecimal(decimal.NewFromFloat(f)), nil
}

// Parse reads user supplied text. The value must be finite, carry at most
// two fractional digits and lie within MaxAmount; the sign is not checked.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxTextLen {
		return Amount{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsZero() {
		return Zero, nil
	}
	// Reject extreme exponents before any rescaling arithmetic.
	switch exp := d.Exponent(); {
	case exp > 20:
		return Amount{}, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	case exp < -40:
		return Amount{}, ErrTooPrecise
	}
	if d.Abs().GreaterThan(MaxAmount.d) {
		return Amount{}, fmt.Errorf("%w: %q exceeds %s", ErrOutOfRange, s, MaxAmount)
	}
	if d.Exponent() < -Scale && !d.Equal(d.Round(Scale)) {
		return Amount{}, ErrTooPrecise
	}
	return Amount{d: d.Round(Scale)}, nil
}

// ParsePositive is Parse followed by a strictly-positive check.
func ParsePositive(s string) (Amount, error) {
	a, err := Parse(s)
	if err != nil {
		return Amount{}, err
	}
	if !a.IsPositive() {
		return Amount{}, ErrNotPositive
	}
	return a, nil
}

// MustParse panics if s is not a valid amount. Intended for tests and constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Neg() Amount         { return Amount{d: a.d.Neg()} }

func (a Amount) IsZero() bool     { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Exceeds reports whether |a| is greater than limit.
func (a Amount) Exceeds(limit Amount) bool { return a.d.Abs().GreaterThan(limit.d) }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int    { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// Decimal exposes the underlying value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// Float64 is the representation written to documents. Cent values survive the
// round trip because FromFloat rounds back to two places.
func (a Amount) Float64() float64 {
	return a.d.Round(Scale).InexactFloat64()
}

// String formats with exactly two fractional digits, e.g. "-12.50".
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*a = Zero
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
