// Package config loads a run's Blueprint from TOML and its Timeline from
// YAML, mirroring the file-format split the rest of the corpus uses:
// structural service configuration in TOML, declarative data sets in YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/chronicle-sim/core/engine"
	"github.com/chronicle-sim/core/timelock"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// blueprintFile is the on-disk TOML shape a Blueprint decodes from.
type blueprintFile struct {
	Industry          string             `toml:"Industry"`
	InitialConditions initialConditions  `toml:"InitialConditions"`
	Constraints       constraints        `toml:"Constraints"`
	Policies          policies           `toml:"Policies"`
	MarketExposure    map[string]float64 `toml:"MarketExposure"`
	IndustryParams    map[string]any     `toml:"IndustryParams"`
	// ExpiryBehavior is "permanent" or "transient"; empty defaults to
	// "permanent" in engine.New.
	ExpiryBehavior string `toml:"ExpiryBehavior"`
}

type initialConditions struct {
	Cash        float64            `toml:"Cash"`
	MonthlyBurn float64            `toml:"MonthlyBurn"`
	Pricing     map[string]float64 `toml:"Pricing"`
	Margin      float64            `toml:"Margin"`
	Headcount   int                `toml:"Headcount"`
	Capacity    map[string]float64 `toml:"Capacity"`
}

type constraints struct {
	HiringVelocityMax       *float64 `toml:"HiringVelocityMax"`
	ProcurementLeadTimeDays *float64 `toml:"ProcurementLeadTimeDays"`
	WorkingCapitalMin       *float64 `toml:"WorkingCapitalMin"`
	SLATargetsMin           *float64 `toml:"SLATargetsMin"`
	ComplianceStrictness    *float64 `toml:"ComplianceStrictness"`
}

type policies struct {
	SpendLimitMonthly       *float64 `toml:"SpendLimitMonthly"`
	ApprovalThreshold       *float64 `toml:"ApprovalThreshold"`
	MaxPercentChangePricing *float64 `toml:"MaxPercentChangePricing"`
	RiskAppetite            *float64 `toml:"RiskAppetite"`
}

// LoadBlueprint decodes a Blueprint from a TOML file at path.
func LoadBlueprint(path string) (engine.Blueprint, error) {
	var file blueprintFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return engine.Blueprint{}, fmt.Errorf("config: decode blueprint %s: %w", path, err)
	}

	return engine.Blueprint{
		Industry: file.Industry,
		InitialConditions: engine.InitialConditions{
			Cash:        file.InitialConditions.Cash,
			MonthlyBurn: file.InitialConditions.MonthlyBurn,
			Pricing:     file.InitialConditions.Pricing,
			Margin:      file.InitialConditions.Margin,
			Headcount:   file.InitialConditions.Headcount,
			Capacity:    file.InitialConditions.Capacity,
		},
		Constraints: engine.Constraints{
			HiringVelocityMax:       file.Constraints.HiringVelocityMax,
			ProcurementLeadTimeDays: file.Constraints.ProcurementLeadTimeDays,
			WorkingCapitalMin:       file.Constraints.WorkingCapitalMin,
			SLATargetsMin:           file.Constraints.SLATargetsMin,
			ComplianceStrictness:    file.Constraints.ComplianceStrictness,
		},
		Policies: engine.Policies{
			SpendLimitMonthly:       file.Policies.SpendLimitMonthly,
			ApprovalThreshold:       file.Policies.ApprovalThreshold,
			MaxPercentChangePricing: file.Policies.MaxPercentChangePricing,
			RiskAppetite:            file.Policies.RiskAppetite,
		},
		MarketExposure: file.MarketExposure,
		IndustryParams: file.IndustryParams,
		ExpiryBehavior: engine.ExpiryBehavior(file.ExpiryBehavior),
	}, nil
}

// timelineFile is the on-disk YAML shape a Timeline decodes from.
type timelineFile struct {
	StartDate string        `yaml:"start_date"`
	EndDate   string        `yaml:"end_date"`
	Events    []eventRecord `yaml:"events"`
}

type eventRecord struct {
	Timestamp        string             `yaml:"timestamp"`
	EventType        string             `yaml:"event_type"`
	Severity         float64            `yaml:"severity"`
	DurationDays     float64            `yaml:"duration_days"`
	AffectedAreas    []string           `yaml:"affected_areas"`
	ParameterImpacts map[string]float64 `yaml:"parameter_impacts"`
	Signals          []signalRecord     `yaml:"signals"`
}

type signalRecord struct {
	ReleaseTime string         `yaml:"release_time"`
	Type        string         `yaml:"type"`
	Content     map[string]any `yaml:"content"`
}

const dateLayout = "2006-01-02"

// LoadTimeline decodes a Timeline from a YAML file at path. Dates use the
// bare YYYY-MM-DD layout; times are UTC midnight.
func LoadTimeline(path string) (engine.Timeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return engine.Timeline{}, fmt.Errorf("config: read timeline %s: %w", path, err)
	}

	var file timelineFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return engine.Timeline{}, fmt.Errorf("config: decode timeline %s: %w", path, err)
	}

	start, err := time.Parse(dateLayout, file.StartDate)
	if err != nil {
		return engine.Timeline{}, fmt.Errorf("config: parse start_date: %w", err)
	}
	end, err := time.Parse(dateLayout, file.EndDate)
	if err != nil {
		return engine.Timeline{}, fmt.Errorf("config: parse end_date: %w", err)
	}

	events := make([]timelock.Event, 0, len(file.Events))
	for i, rec := range file.Events {
		ts, err := time.Parse(dateLayout, rec.Timestamp)
		if err != nil {
			return engine.Timeline{}, fmt.Errorf("config: parse events[%d].timestamp: %w", i, err)
		}
		signals := make([]timelock.Signal, 0, len(rec.Signals))
		for j, sig := range rec.Signals {
			releaseTime, err := time.Parse(dateLayout, sig.ReleaseTime)
			if err != nil {
				return engine.Timeline{}, fmt.Errorf("config: parse events[%d].signals[%d].release_time: %w", i, j, err)
			}
			signals = append(signals, timelock.Signal{ReleaseTime: releaseTime, Type: sig.Type, Content: sig.Content})
		}
		events = append(events, timelock.Event{
			Timestamp:        ts,
			EventType:        rec.EventType,
			Severity:         rec.Severity,
			DurationDays:     rec.DurationDays,
			AffectedAreas:    rec.AffectedAreas,
			ParameterImpacts: rec.ParameterImpacts,
			Signals:          signals,
		})
	}

	return engine.Timeline{StartDate: start, EndDate: end, Events: events}, nil
}
