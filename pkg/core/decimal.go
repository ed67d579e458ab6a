package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Decimal is an arbitrary-precision number that reads JSON numbers, quoted
// numbers and null, and writes a plain JSON number without exponent.
type Decimal struct {
	apd.Decimal
}

// NewDecimal parses s into a Decimal.
func NewDecimal(s string) (Decimal, error) {
	var d Decimal
	if _, _, err := apd.BaseContext.SetString(&d.Decimal, s); err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// MustDecimal is like NewDecimal but panics on malformed input.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt returns v as a Decimal.
func DecimalFromInt(v int64) Decimal {
	var d Decimal
	d.SetInt64(v)
	return d
}

// String returns the value in plain notation.
func (d Decimal) String() string {
	return d.Decimal.Text('f')
}

// MarshalJSON implements json.Marshaler for Decimal.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.Decimal.Text('f')), nil
}

// UnmarshalJSON implements json.Unmarshaler for Decimal.
// null leaves the value unchanged.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	if s == "" {
		d.Decimal = apd.Decimal{}
		return nil
	}
	if _, _, err := apd.BaseContext.SetString(&d.Decimal, s); err != nil {
		return fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return nil
}

// Ptr returns a pointer to a copy of d, for optional request fields.
func (d Decimal) Ptr() *Decimal {
	return &d
}
