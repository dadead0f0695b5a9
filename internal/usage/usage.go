// Package usage calls the Anthropic OAuth usage endpoint, the one the
// Claude desktop app reads for Settings > Usage, and turns the
// response into typed utilization windows.
package usage

import (
	"errors"
	"time"
)

var (
	// ErrUnauthorized: the server rejected the bearer token (HTTP
	// 401) even though the local clock considered it valid. Distinct
	// from transport failure; the caller should force one refresh
	// and retry once.
	ErrUnauthorized = errors.New("usage: token rejected by server")
	// ErrInvalidPayload: the response parsed but carried values that
	// cannot be displayed (utilization outside 0-100, wrong types).
	ErrInvalidPayload = errors.New("usage: invalid payload")
)

// Window is one rolling usage window. Immutable once constructed; a
// new fetch produces a new value rather than mutating the old one.
type Window struct {
	Utilization float64 // percent, 0-100
	ResetsAt    *time.Time
}

// ExtraUsage reports pay-as-you-go overflow credits, when the account
// has them enabled.
type ExtraUsage struct {
	Enabled      bool
	UsedCredits  float64
	MonthlyLimit *float64
}

// Snapshot is the full server-side usage picture from one fetch. Nil
// windows mean the server reported no data for that bucket, not the
// same thing as a present window at zero utilization.
type Snapshot struct {
	FiveHour       *Window
	SevenDay       *Window
	SevenDayOpus   *Window
	SevenDaySonnet *Window
	Extra          *ExtraUsage
	FetchedAt      time.Time
}

// Worst returns the highest utilization across the primary windows, or
// -1 when the snapshot has no windows at all. Model-specific buckets
// are excluded: they are sub-limits of the seven-day window.
func (s Snapshot) Worst() float64 {
	worst := -1.0
	for _, w := range []*Window{s.FiveHour, s.SevenDay} {
		if w != nil && w.Utilization > worst {
			worst = w.Utilization
		}
	}
	return worst
}

// Windows lists the present windows with display labels, in the order
// the presentation layer shows them.
func (s Snapshot) Windows() []LabeledWindow {
	out := make([]LabeledWindow, 0, 4)
	add := func(label string, w *Window) {
		if w != nil {
			out = append(out, LabeledWindow{Label: label, Window: *w})
		}
	}
	add("5-hour", s.FiveHour)
	add("7-day", s.SevenDay)
	add("7-day Opus", s.SevenDayOpus)
	add("7-day Sonnet", s.SevenDaySonnet)
	return out
}

type LabeledWindow struct {
	Label  string
	Window Window
}
