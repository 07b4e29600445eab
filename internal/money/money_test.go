package money

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "100", want: "100.00"},
		{in: " 12.5 ", want: "12.50"},
		{in: "0.01", want: "0.01"},
		{in: "-3.10", want: "-3.10"},
		{in: "1.230", want: "1.23"},
		{in: "1.234", wantErr: ErrTooPrecise},
		{in: "", wantErr: ErrInvalidAmount},
		{in: "abc", wantErr: ErrInvalidAmount},
		{in: "NaN", wantErr: ErrInvalidAmount},
		{in: "Inf", wantErr: ErrInvalidAmount},
		{in: "999999999.99", want: "999999999.99"},
		{in: "-999999999.99", want: "-999999999.99"},
		{in: "1000000000", wantErr: ErrOutOfRange},
		{in: "1e309", wantErr: ErrOutOfRange},
		{in: "-1e309", wantErr: ErrOutOfRange},
		{in: "1e400000", wantErr: ErrOutOfRange},
		{in: "1e-400000", wantErr: ErrTooPrecise},
		{in: "0e-400000", want: "0.00"},
		{in: "1" + strings.Repeat("0", 70), wantErr: ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParsePositiveRejectsZeroAndNegative(t *testing.T) {
	for _, in := range []string{"0", "0.00", "-1"} {
		_, err := ParsePositive(in)
		assert.ErrorIs(t, err, ErrNotPositive, in)
	}

	a, err := ParsePositive("42.10")
	require.NoError(t, err)
	assert.Equal(t, "42.10", a.String())
}

func TestArithmeticStaysExact(t *testing.T) {
	total := Zero
	for i := 0; i < 10; i++ {
		total = total.Add(MustParse("0.10"))
	}
	assert.True(t, total.Equal(MustParse("1.00")))
	assert.True(t, total.Sub(MustParse("1.50")).IsNegative())
	assert.Equal(t, "-1.00", total.Neg().String())
	assert.Equal(t, "3.30", Sum(MustParse("1.10"), MustParse("2.20")).String())
}

func TestFloatRoundTrip(t *testing.T) {
	a := MustParse("19.99")
	back, err := FromFloat(a.Float64())
	require.NoError(t, err)
	assert.True(t, a.Equal(back))

	assert.Equal(t, int64(1999), FromCents(1999).Decimal().Shift(2).IntPart())

	// Every cent up to MaxBalance survives the float encoding.
	for _, a := range []Amount{MaxBalance, MaxBalance.Sub(FromCents(1)), MaxBalance.Neg().Add(FromCents(7)), MaxAmount} {
		back, err := FromFloat(a.Float64())
		require.NoError(t, err)
		assert.True(t, a.Equal(back), "%s came back as %s", a, back)
	}
}

func TestExceeds(t *testing.T) {
	assert.False(t, MaxAmount.Exceeds(MaxAmount))
	assert.True(t, MaxAmount.Add(FromCents(1)).Exceeds(MaxAmount))
	assert.True(t, MaxAmount.Add(FromCents(1)).Neg().Exceeds(MaxAmount))
	assert.True(t, MaxBalance.Exceeds(MaxAmount))
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Amount `json:"amount"`
	}{MustParse("7.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":7.50}`, string(b))

	var decoded struct {
		Amount Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"12.30"}`), &decoded))
	assert.Equal(t, "12.30", decoded.Amount.String())
}
