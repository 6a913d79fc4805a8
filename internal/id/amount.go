package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	apperr "github.com/mrivas/defi-agent/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseBaseUnits converts a non-negative decimal string into integer base
// units for a token with the given decimals, truncating nothing: precision
// beyond the token's decimals is rejected rather than silently rounded.
func ParseBaseUnits(decimal string, decimals int) (*big.Int, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return nil, apperr.New(apperr.StepToolExecution, "amount is required")
	}
	if !decimalPattern.MatchString(clean) {
		return nil, apperr.New(apperr.StepToolExecution, fmt.Sprintf("amount must be a non-negative decimal, got %q", decimal))
	}
	if decimals < 0 {
		return nil, apperr.New(apperr.StepToolExecution, "token decimals must be >= 0")
	}

	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, apperr.New(apperr.StepToolExecution, fmt.Sprintf("amount precision exceeds token decimals (%d)", decimals))
	}

	fracPart += strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, apperr.New(apperr.StepToolExecution, "invalid decimal amount")
	}
	return out, nil
}

// FormatBaseUnits renders integer base units as a decimal string, trimming
// trailing zeros from the fraction.
func FormatBaseUnits(baseUnits *big.Int, decimals int) string {
	if baseUnits == nil {
		return "0"
	}
	s := baseUnits.String()
	if decimals == 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// FormatBaseUnitString is FormatBaseUnits for amounts already held as
// integer strings, as provider APIs return them.
func FormatBaseUnitString(baseUnits string, decimals int) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(baseUnits), 10)
	if !ok {
		return "0"
	}
	return FormatBaseUnits(n, decimals)
}
