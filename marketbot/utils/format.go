package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatPrice groups digits in threes: FormatPrice(150000, "sum") == "150 000 sum".
func FormatPrice(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	if currency == "" {
		return sign + b.String()
	}
	return sign + b.String() + " " + currency
}

// FormatRemaining renders a countdown as "1h 05m", "12m" or "<1m".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "ended"
	}
	if d < time.Minute {
		return "<1m"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
