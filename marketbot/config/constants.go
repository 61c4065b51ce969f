package config

import "time"

// UI and Display Constants
const (
	BidHistoryPerPage = 10

	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00

	EmbedDefaultColor = 0x2B2D31
	SoldColor         = 0xFFD700
)

// Database and Performance Constants
const (
	DefaultQueryTimeout     = 30 * time.Second
	CommandExecutionTimeout = 10 * time.Second
	SlowCommandThreshold    = 2 * time.Second
	ShutdownTimeout         = 15 * time.Second
	DMChannelCacheSize      = 1024
)

// Quick-bid steps in percent of the current price.
var QuickBidPercents = []int64{10, 20, 50}
