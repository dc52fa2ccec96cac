package form

// Summary is the "N명 × amount원" line shown above the submit button.
type Summary struct {
	People    int
	Amount    int64
	LineTotal int64
}

// Summarize derives the summary card contents. It returns nil when
// either input is missing, meaning the card is simply not rendered.
// This is a display rule only; the submit guard makes its own check.
func Summarize(amount int64, people int) *Summary {
	if amount <= 0 || people <= 0 {
		return nil
	}
	return &Summary{
		People:    people,
		Amount:    amount,
		LineTotal: amount * int64(people),
	}
}
