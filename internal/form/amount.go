// Package form models the record-composition form as immutable state
// values with pure transitions. Each model is scoped to one form
// session: created fresh when the form opens, discarded on navigation.
// Derived values (amount, head count, summary) are always computed
// from the current fields, never stored.
package form

import (
	"strconv"
	"strings"

	"bujo/internal/core"
)

// AmountState holds the cash and gold inputs of the amount card. The
// two branches keep their values independently so the user can flip
// the gift type back and forth without losing work; only the active
// branch feeds Amount().
//
// Within a branch, preset and custom text are mutually exclusive:
// picking a preset clears the text, typing clears the preset. Zero
// means "no preset selected" (all presets are positive).
type AmountState struct {
	GiftType core.GiftType

	SelectedWon int64
	CustomWon   string

	SelectedDon float64
	CustomDon   string
	PricePerDon int64
}

// NewAmountState returns the initial state: cash mode, nothing entered.
func NewAmountState() AmountState {
	return AmountState{GiftType: core.GiftCash}
}

// WithGiftType switches the active branch. Values entered in the other
// branch are kept.
func (s AmountState) WithGiftType(t core.GiftType) AmountState {
	s.GiftType = t
	return s
}

// SelectWon picks a cash preset and clears any custom text.
func (s AmountState) SelectWon(won int64) AmountState {
	s.SelectedWon = won
	s.CustomWon = ""
	return s
}

// TypeWon records free-typed cash text and clears the preset.
func (s AmountState) TypeWon(text string) AmountState {
	s.CustomWon = text
	s.SelectedWon = 0
	return s
}

// SelectDon picks a gold weight preset and clears any custom weight.
func (s AmountState) SelectDon(don float64) AmountState {
	s.SelectedDon = don
	s.CustomDon = ""
	return s
}

// TypeDon records free-typed gold weight text and clears the preset.
func (s AmountState) TypeDon(text string) AmountState {
	s.CustomDon = text
	s.SelectedDon = 0
	return s
}

// WithPricePerDon sets the gold market price; zero clears it, which
// drops the gold amount to zero.
func (s AmountState) WithPricePerDon(price int64) AmountState {
	s.PricePerDon = price
	return s
}

// CashAmount is the cash-branch value: the preset if one is selected,
// otherwise the custom text parsed permissively.
func (s AmountState) CashAmount() int64 {
	if s.SelectedWon != 0 {
		return s.SelectedWon
	}
	return looseWon(s.CustomWon)
}

// DonAmount is the gold weight in don: preset or parsed custom text.
func (s AmountState) DonAmount() float64 {
	if s.SelectedDon != 0 {
		return s.SelectedDon
	}
	return looseFloat(s.CustomDon)
}

// GoldAmount converts the gold branch to won; zero until a price is set.
func (s AmountState) GoldAmount() int64 {
	return core.GoldValue(s.DonAmount(), s.PricePerDon)
}

// Amount is the derived monetary value of the active branch.
func (s AmountState) Amount() int64 {
	if s.GiftType == core.GiftGold {
		return s.GoldAmount()
	}
	return s.CashAmount()
}

// looseWon parses mid-typing cash text. Anything unparseable is zero;
// negatives pass through so the user is never blocked while typing.
// Positivity is enforced at submission, not here.
func looseWon(text string) int64 {
	f := looseFloat(text)
	if f > 0 {
		return int64(f + 0.5)
	}
	return int64(f - 0.5)
}

func looseFloat(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}
