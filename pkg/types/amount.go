package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a token amount in the smallest unit of its asset (zatoshi,
// wei, lamports, ...). It is serialized as a decimal string so that
// large values round-trip exactly through JSON regardless of the
// consumer's number precision.
type Amount uint64

// String returns the amount as a decimal string.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a == 0
}

// MarshalJSON encodes the amount as a JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an amount from a JSON string. Bare JSON numbers
// are rejected: they may have passed through a float64 on the way here.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be encoded as a string: %w", err)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAmount parses a decimal string into an Amount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount(v), nil
}

// ParseDecimalAmount converts a human-readable decimal amount (e.g.
// "0.5") into the smallest unit for an asset with the given number of
// decimals. The conversion is pure integer math; float precision never
// touches the value.
func ParseDecimalAmount(s string, decimals int) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount cannot be empty")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("amount cannot be negative: %q", s)
	}
	if decimals < 0 || decimals > 19 {
		return 0, fmt.Errorf("unsupported decimals: %d", decimals)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		// Truncate rather than round; we never invent dust.
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(combined, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount(v), nil
}

// FormatAmount renders an Amount as a human-readable decimal string for
// an asset with the given number of decimals.
func FormatAmount(a Amount, decimals int) string {
	s := a.String()
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
