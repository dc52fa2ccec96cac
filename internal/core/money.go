// Package core holds the gift-ledger domain types and money handling.
//
// Amounts are whole KRW won; there is no fractional currency unit, so
// Money carries a single int64. Gold gifts are entered as a weight in
// "don" (돈, the traditional gold unit) and converted to won at a
// per-don price.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseWon converts a string of digits to won. It is strict: only
// positive whole numbers are accepted. This is the validation-time
// parser; the record form uses its own permissive parsing while the
// user is still typing.
//
// Examples:
//
//	ParseWon("100000") -> 100000, nil
//	ParseWon(" 50000 ") -> 50000, nil
//	ParseWon("-100") -> 0, ErrInvalidAmount
//	ParseWon("1.5") -> 0, ErrInvalidAmount
func ParseWon(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseDon converts a decimal string to a gold weight in don. Strict
// like ParseWon: positive values only, dot or comma decimal separator.
func ParseDon(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// GoldValue converts a gold weight to won at the given per-don price
// using ordinary half-up rounding, matching how the amount is shown to
// the user before submission. A missing price yields zero.
func GoldValue(don float64, pricePerDon int64) int64 {
	if pricePerDon <= 0 || don <= 0 {
		return 0
	}
	return int64(math.Round(don * float64(pricePerDon)))
}
