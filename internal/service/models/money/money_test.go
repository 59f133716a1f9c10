package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karakol/delivery/internal/service/models/money"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1"},
		{"12.999", "13"},
		{"86.66", "86.66"},
		{"0", "0"},
	}

	for _, tt := range tests {
		got := money.Round2(money.RequireFromString(tt.in))
		assert.True(t, got.Equal(money.RequireFromString(tt.want)), "Round2(%s) = %s", tt.in, got)
	}
}

func TestWithinCent(t *testing.T) {
	assert.True(t, money.WithinCent(money.RequireFromString("10.00"), money.RequireFromString("10.01")))
	assert.True(t, money.WithinCent(money.RequireFromString("10.01"), money.RequireFromString("10.00")))
	assert.False(t, money.WithinCent(money.RequireFromString("10.00"), money.RequireFromString("10.02")))
}
