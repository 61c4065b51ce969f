package auction

import "github.com/shopspring/decimal"

// QuickBidSteps returns the bid amounts offered as one-click buttons: the
// current price raised by each percentage, rounded down, and always at least
// one unit above the current price. Duplicates are dropped.
func QuickBidSteps(currentPrice int64, percents []int64) []int64 {
	price := decimal.NewFromInt(currentPrice)
	hundred := decimal.NewFromInt(100)

	steps := make([]int64, 0, len(percents))
	seen := make(map[int64]struct{}, len(percents))
	for _, p := range percents {
		if p <= 0 {
			continue
		}
		raise := price.Mul(decimal.NewFromInt(p)).Div(hundred).Floor().IntPart()
		if raise < 1 {
			raise = 1
		}
		amount := currentPrice + raise
		if _, ok := seen[amount]; ok {
			continue
		}
		seen[amount] = struct{}{}
		steps = append(steps, amount)
	}
	return steps
}
