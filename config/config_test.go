package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chronicle-sim/core/engine"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadBlueprintDecodesTOML(t *testing.T) {
	path := writeTempFile(t, "blueprint.toml", `
Industry = "saas"

[InitialConditions]
Cash = 5000000.0
MonthlyBurn = 200000.0
Headcount = 20

[InitialConditions.Pricing]
pro = 49.0

[Policies]
SpendLimitMonthly = 100000.0
`)

	bp, err := LoadBlueprint(path)
	if err != nil {
		t.Fatalf("load blueprint: %v", err)
	}
	if bp.Industry != "saas" {
		t.Fatalf("Industry = %q, want saas", bp.Industry)
	}
	if bp.InitialConditions.Cash != 5_000_000 {
		t.Fatalf("Cash = %f, want 5000000", bp.InitialConditions.Cash)
	}
	if bp.InitialConditions.Pricing["pro"] != 49.0 {
		t.Fatalf("Pricing[pro] = %f, want 49.0", bp.InitialConditions.Pricing["pro"])
	}
	if bp.Policies.SpendLimitMonthly == nil || *bp.Policies.SpendLimitMonthly != 100_000 {
		t.Fatal("SpendLimitMonthly not decoded")
	}
	if bp.ExpiryBehavior != "" {
		t.Fatalf("ExpiryBehavior = %q, want empty when unset in TOML", bp.ExpiryBehavior)
	}
}

func TestLoadBlueprintDecodesExpiryBehavior(t *testing.T) {
	path := writeTempFile(t, "blueprint.toml", `
Industry = "saas"
ExpiryBehavior = "transient"

[InitialConditions]
Cash = 1000000.0
MonthlyBurn = 50000.0
`)

	bp, err := LoadBlueprint(path)
	if err != nil {
		t.Fatalf("load blueprint: %v", err)
	}
	if bp.ExpiryBehavior != engine.ExpiryTransient {
		t.Fatalf("ExpiryBehavior = %q, want %q", bp.ExpiryBehavior, engine.ExpiryTransient)
	}
}

func TestLoadTimelineDecodesYAML(t *testing.T) {
	path := writeTempFile(t, "timeline.yaml", `
start_date: "2020-01-01"
end_date: "2020-12-31"
events:
  - timestamp: "2020-06-01"
    event_type: "demand_shock"
    severity: 0.7
    duration_days: 30
    parameter_impacts:
      cost_multiplier: 1.2
    signals:
      - release_time: "2020-05-15"
        type: "early_signal"
        content:
          note: "rumored shock"
`)

	tl, err := LoadTimeline(path)
	if err != nil {
		t.Fatalf("load timeline: %v", err)
	}
	if !tl.StartDate.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartDate = %v", tl.StartDate)
	}
	if len(tl.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(tl.Events))
	}
	ev := tl.Events[0]
	if ev.EventType != "demand_shock" || ev.DurationDays != 30 {
		t.Fatalf("unexpected event decode: %+v", ev)
	}
	if len(ev.Signals) != 1 || ev.Signals[0].Type != "early_signal" {
		t.Fatalf("unexpected signal decode: %+v", ev.Signals)
	}
}

func TestLoadTimelineRejectsMalformedDate(t *testing.T) {
	path := writeTempFile(t, "timeline.yaml", `
start_date: "not-a-date"
end_date: "2020-12-31"
`)
	if _, err := LoadTimeline(path); err == nil {
		t.Fatal("expected an error for a malformed start_date")
	}
}
