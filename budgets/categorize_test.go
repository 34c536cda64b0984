package budgets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordMatcher(t *testing.T) {
	m := NewKeywordMatcher()

	tests := []struct {
		description string
		category    string
		want        bool
	}{
		{"Dinner at a restaurant", "Food", true},
		{"GROCERY run", "food", true},
		{"Gas station fill-up", "Transportation", true},
		{"Uber to the airport", "transportation", true},
		{"Movie tickets", "Entertainment", true},
		{"Dinner at a restaurant", "Transportation", false},
		{"Rent payment", "Food", false},
		// Category mentioned directly in the description.
		{"food delivery", "Food", true},
		{"", "Food", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Matches(tt.description, tt.category),
			"%q vs %q", tt.description, tt.category)
	}
}
