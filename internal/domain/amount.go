package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount is returned when a raw amount is not an exact base-10 integer.
var ErrInvalidAmount = errors.New("invalid raw amount")

// RawAmount is an exact count of an asset's smallest indivisible units (wei, satoshi, lamport).
// The zero value is zero. RawAmount is immutable: arithmetic returns new values.
type RawAmount struct {
	v *big.Int
}

// ZeroRaw returns a zero amount.
func ZeroRaw() RawAmount { return RawAmount{} }

// NewRawAmount creates a RawAmount from an int64.
func NewRawAmount(n int64) RawAmount {
	return RawAmount{v: big.NewInt(n)}
}

// RawFromBig copies b into a RawAmount. A nil b yields zero.
func RawFromBig(b *big.Int) RawAmount {
	if b == nil {
		return RawAmount{}
	}
	return RawAmount{v: new(big.Int).Set(b)}
}

// ParseRawAmount parses a base-10 integer string such as "123456789012345678901234567890".
// Fractions, exponents, hex prefixes and empty input are rejected rather than rounded.
func ParseRawAmount(s string) (RawAmount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RawAmount{}, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return RawAmount{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, s)
	}
	return RawAmount{v: n}, nil
}

// MustRawAmount is ParseRawAmount for constants and tests.
func MustRawAmount(s string) RawAmount {
	r, err := ParseRawAmount(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r RawAmount) big() *big.Int {
	if r.v == nil {
		return new(big.Int)
	}
	return r.v
}

// BigInt returns a copy of the underlying integer.
func (r RawAmount) BigInt() *big.Int {
	return new(big.Int).Set(r.big())
}

// Add returns r + o.
func (r RawAmount) Add(o RawAmount) RawAmount {
	return RawAmount{v: new(big.Int).Add(r.big(), o.big())}
}

// Sub returns r - o. The result may be negative.
func (r RawAmount) Sub(o RawAmount) RawAmount {
	return RawAmount{v: new(big.Int).Sub(r.big(), o.big())}
}

// Max returns the larger of r and o.
func (r RawAmount) Max(o RawAmount) RawAmount {
	if r.Cmp(o) >= 0 {
		return r
	}
	return o
}

// Cmp compares r and o and returns -1, 0 or +1.
func (r RawAmount) Cmp(o RawAmount) int {
	return r.big().Cmp(o.big())
}

// Equal reports whether r and o are the same integer.
func (r RawAmount) Equal(o RawAmount) bool {
	return r.Cmp(o) == 0
}

// Sign returns -1, 0 or +1.
func (r RawAmount) Sign() int {
	return r.big().Sign()
}

// IsPositive reports whether r > 0.
func (r RawAmount) IsPositive() bool {
	return r.Sign() > 0
}

func (r RawAmount) String() string {
	return r.big().String()
}

// MarshalJSON encodes the amount as a decimal string so no precision is lost in transit.
func (r RawAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts a decimal string. Bare JSON numbers are rejected.
func (r *RawAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected string, got %s", ErrInvalidAmount, string(data))
	}
	parsed, err := ParseRawAmount(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
