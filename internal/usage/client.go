package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint returns the same utilization figures the Claude
	// desktop app shows under Settings → Usage.
	DefaultEndpoint = "https://api.anthropic.com/api/oauth/usage"

	betaHeader = "oauth-2025-04-20"
	userAgent  = "claude-code/2.1.0"

	defaultTimeout = 10 * time.Second
)

type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	Now        func() time.Time
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		Endpoint:   DefaultEndpoint,
		Now:        time.Now,
	}
}

// wire shapes: utilization is a pointer so that an absent field is
// distinguishable from a measured zero.
type wireResponse struct {
	FiveHour       *wireWindow `json:"five_hour"`
	SevenDay       *wireWindow `json:"seven_day"`
	SevenDayOpus   *wireWindow `json:"seven_day_opus"`
	SevenDaySonnet *wireWindow `json:"seven_day_sonnet"`
	ExtraUsage     *wireExtra  `json:"extra_usage"`
}

type wireWindow struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    string   `json:"resets_at"`
}

type wireExtra struct {
	Enabled      bool     `json:"enabled"`
	UsedCredits  float64  `json:"used_credits"`
	MonthlyLimit *float64 `json:"monthly_limit"`
}

// Fetch performs one authenticated GET against the usage endpoint.
func (c *Client) Fetch(ctx context.Context, accessToken string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("usage: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("anthropic-beta", betaHeader)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("usage: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Snapshot{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return Snapshot{}, fmt.Errorf("usage: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Snapshot{}, fmt.Errorf("usage: reading response: %w", err)
	}

	return parseSnapshot(body, c.Now())
}

func parseSnapshot(body []byte, fetchedAt time.Time) (Snapshot, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	snap := Snapshot{FetchedAt: fetchedAt}

	windows := []struct {
		name string
		src  *wireWindow
		dst  **Window
	}{
		{"five_hour", wire.FiveHour, &snap.FiveHour},
		{"seven_day", wire.SevenDay, &snap.SevenDay},
		{"seven_day_opus", wire.SevenDayOpus, &snap.SevenDayOpus},
		{"seven_day_sonnet", wire.SevenDaySonnet, &snap.SevenDaySonnet},
	}
	for _, w := range windows {
		parsed, err := parseWindow(w.name, w.src)
		if err != nil {
			return Snapshot{}, err
		}
		*w.dst = parsed
	}

	if wire.ExtraUsage != nil {
		if wire.ExtraUsage.UsedCredits < 0 {
			return Snapshot{}, fmt.Errorf("%w: extra_usage.used_credits = %v", ErrInvalidPayload, wire.ExtraUsage.UsedCredits)
		}
		snap.Extra = &ExtraUsage{
			Enabled:      wire.ExtraUsage.Enabled,
			UsedCredits:  wire.ExtraUsage.UsedCredits,
			MonthlyLimit: wire.ExtraUsage.MonthlyLimit,
		}
	}

	return snap, nil
}

// parseWindow maps one wire bucket. Absent buckets and explicit nulls
// both come through as nil ("no data"). A bucket present without a
// utilization number, or with one outside 0-100, is server-side
// garbage: reject the whole payload rather than display it.
func parseWindow(name string, w *wireWindow) (*Window, error) {
	if w == nil {
		return nil, nil
	}
	if w.Utilization == nil {
		return nil, fmt.Errorf("%w: %s present without utilization", ErrInvalidPayload, name)
	}
	pct := *w.Utilization
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("%w: %s utilization %v out of range", ErrInvalidPayload, name, pct)
	}

	out := &Window{Utilization: pct}
	if w.ResetsAt != "" {
		if t, err := time.Parse(time.RFC3339, w.ResetsAt); err == nil {
			out.ResetsAt = &t
		}
	}
	return out, nil
}
