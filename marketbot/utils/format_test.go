package utils

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{0, "sum", "0 sum"},
		{999, "sum", "999 sum"},
		{1000, "sum", "1 000 sum"},
		{150000, "sum", "150 000 sum"},
		{1234567, "", "1 234 567"},
		{-2500, "sum", "-2 500 sum"},
	}

	for _, tt := range tests {
		check.Equal(t, tt.want, FormatPrice(tt.amount, tt.currency))
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "ended"},
		{0, "ended"},
		{30 * time.Second, "<1m"},
		{12*time.Minute + 40*time.Second, "12m"},
		{time.Hour + 5*time.Minute, "1h 05m"},
		{2 * time.Hour, "2h 00m"},
	}

	for _, tt := range tests {
		check.Equal(t, tt.want, FormatRemaining(tt.d))
	}
}
