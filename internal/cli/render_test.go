package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/claudebar/internal/poller"
	"github.com/janekbaraniewski/claudebar/internal/profile"
	"github.com/janekbaraniewski/claudebar/internal/usage"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func okState() poller.State {
	reset := testNow.Add(2*time.Hour + 14*time.Minute)
	return poller.State{
		Snapshot: &usage.Snapshot{
			FiveHour: &usage.Window{Utilization: 42, ResetsAt: &reset},
			SevenDay: &usage.Window{Utilization: 61},
		},
		Profile:   profile.Profile{ID: "auto", Label: "Auto (Keychain)"},
		UpdatedAt: testNow,
		Status:    poller.StatusOK,
	}
}

func TestRenderStatus_ShowsAllWindows(t *testing.T) {
	out := RenderStatus(okState(), 0.50, 0.80, testNow)

	for _, want := range []string{"5-hour", "7-day", "42.0%", "61.0%", "OK", "2h14m"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "7-day Opus") {
		t.Error("absent bucket rendered")
	}
}

func TestRenderStatus_NoSnapshotYet(t *testing.T) {
	state := poller.State{Status: poller.StatusPending, Message: "waiting for first refresh"}
	out := RenderStatus(state, 0.50, 0.80, testNow)
	if !strings.Contains(out, "no usage data yet") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderStatus_FailureShowsMessage(t *testing.T) {
	state := okState()
	state.Status = poller.StatusStale
	state.Message = "update failed, will retry"
	out := RenderStatus(state, 0.50, 0.80, testNow)
	if !strings.Contains(out, "update failed, will retry") {
		t.Errorf("message not surfaced:\n%s", out)
	}
	// Last good snapshot still rendered alongside the failure.
	if !strings.Contains(out, "42.0%") {
		t.Errorf("stale snapshot not rendered:\n%s", out)
	}
}

func TestStatusLine_Indicators(t *testing.T) {
	tests := []struct {
		name  string
		worst float64
		want  string
	}{
		{"ok", 30, "🟢 30%"},
		{"warn", 61, "🟡 61%"},
		{"crit", 93, "🔴 93%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := poller.State{
				Snapshot: &usage.Snapshot{FiveHour: &usage.Window{Utilization: tt.worst}},
				Status:   poller.StatusOK,
			}
			got := StatusLine(state, 0.50, 0.80, testNow, 0)
			if got != tt.want {
				t.Errorf("StatusLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusLine_WorstOfBothWindows(t *testing.T) {
	got := StatusLine(okState(), 0.50, 0.80, testNow, 0)
	if !strings.Contains(got, "61%") {
		t.Errorf("StatusLine = %q, want worst window 61%%", got)
	}
	if !strings.Contains(got, "2h14m") {
		t.Errorf("StatusLine = %q, want soonest reset", got)
	}
}

func TestStatusLine_AuthRequired(t *testing.T) {
	state := poller.State{Status: poller.StatusAuth, Message: "re-login"}
	got := StatusLine(state, 0.50, 0.80, testNow, 0)
	if got != "🔑 login required" {
		t.Errorf("StatusLine = %q", got)
	}
}

func TestStatusLine_StaleMarker(t *testing.T) {
	state := okState()
	state.Status = poller.StatusStale
	got := StatusLine(state, 0.50, 0.80, testNow, 0)
	if !strings.HasSuffix(got, "(stale)") {
		t.Errorf("StatusLine = %q, want stale marker", got)
	}
}

func TestStatusLine_TruncatesToWidth(t *testing.T) {
	got := StatusLine(okState(), 0.50, 0.80, testNow, 4)
	if w := len([]rune(got)); w == 0 {
		t.Fatal("empty line")
	}
	if !strings.HasPrefix(got, "🟡") {
		t.Errorf("StatusLine = %q", got)
	}
	if strings.Contains(got, "2h14m") {
		t.Errorf("StatusLine = %q, want truncated", got)
	}
}

func TestRenderUsageGauge(t *testing.T) {
	out := RenderUsageGauge(50, 20, 0.50, 0.80)
	if !strings.Contains(out, "50.0%") {
		t.Errorf("gauge = %q", out)
	}
	na := RenderUsageGauge(-1, 20, 0.50, 0.80)
	if !strings.Contains(na, "N/A") {
		t.Errorf("gauge = %q, want N/A", na)
	}
}

func TestFormatReset(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"minutes", testNow.Add(35 * time.Minute), "35m"},
		{"hours", testNow.Add(2*time.Hour + 14*time.Minute), "2h14m"},
		{"days", testNow.Add(72 * time.Hour), "3d"},
		{"past", testNow.Add(-time.Minute), "now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatReset(testNow, tt.at); got != tt.want {
				t.Errorf("formatReset = %q, want %q", got, tt.want)
			}
		})
	}
}
