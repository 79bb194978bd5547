package model

import "time"

type Client struct {
	ID      int64
	Name    string
	Email   string
	Deleted bool
}

type Provider struct {
	ID      int64
	Name    string
	Email   string
	Active  bool
	Deleted bool
}

// MonthStats counts closed appointments created in one calendar month.
type MonthStats struct {
	Month               time.Time
	Finished            int
	NotAccepted         int
	CancelledByClient   int
	CancelledByProvider int
}
