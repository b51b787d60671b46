package bot

import "sync/atomic"

// Destination holds the chat that receives relayed cards. Zero disables it.
// It lives in memory only; a restart falls back to the configured default.
type Destination struct {
	id atomic.Int64
}

func NewDestination(initial int64) *Destination {
	d := &Destination{}
	d.id.Store(initial)

	return d
}

// Target returns the current destination chat.
func (d *Destination) Target() int64 {
	return d.id.Load()
}

// Set replaces the destination and returns the previous one.
func (d *Destination) Set(chatID int64) int64 {
	return d.id.Swap(chatID)
}
