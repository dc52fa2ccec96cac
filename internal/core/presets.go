package core

// Preset choices offered by clients when composing a record. These are
// suggestions only; free-text entry is always allowed.

// ReceivedAmountPresets are the quick-pick won amounts for money
// received at the user's own event.
var ReceivedAmountPresets = []int64{
	50000, 100000, 150000, 200000, 250000, 300000, 350000, 500000,
}

// SentAmountPresets are the quick-pick amounts for money sent to a
// friend's event.
var SentAmountPresets = []int64{30000, 50000, 100000, 200000}

// GoldDonPresets are the quick-pick gold weights.
var GoldDonPresets = []float64{1, 2, 3, 5, 10}

// RelationSuggestions are the common relation labels offered when
// adding a new friend.
var RelationSuggestions = []string{
	"친구", "직장 동료", "가족", "친척", "선후배", "지인",
}
