// Package companystate defines the immutable CompanyState snapshot and its
// clone-with-overrides evolution, plus the StateTransition pair that the
// Simulation Engine validates at commit time.
package companystate

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"lukechampine.com/blake3"
)

// CompanyState is an immutable snapshot of a simulated company at a point
// in wall-clock time. Every map field is owned exclusively by this
// snapshot: Clone deep-copies them before applying overrides, so no two
// CompanyState values ever alias the same backing map.
type CompanyState struct {
	Timestamp time.Time
	Version   uint64

	// Financial
	Cash           float64
	RevenueMonthly float64
	CostsMonthly   float64
	Margin         float64

	// Operations
	Headcount   int
	Capacity    map[string]float64
	Utilization map[string]float64

	// Market
	Demand    map[string]float64
	Pricing   map[string]float64
	CAC       map[string]float64
	ChurnRate float64

	// Supply
	Inventory map[string]float64
	Backlog   map[string]float64
	LeadTimes map[string]float64

	ServiceLevel float64

	// Risk
	RiskFlags       []string
	ComplianceScore float64

	// Metadata is the open extension point. It carries growth_rate and any
	// industry-specific scratch values that do not warrant a typed field.
	Metadata map[string]any
}

// RunwayMonths is cash divided by monthly burn, infinite (math.Inf(1))
// when CostsMonthly is zero or negative.
func (s CompanyState) RunwayMonths() float64 {
	if s.CostsMonthly <= 0 {
		return math.Inf(1)
	}
	return s.Cash / s.CostsMonthly
}

// GrowthRate reads the metadata-carried growth rate, defaulting to zero
// when absent or not a float64.
func (s CompanyState) GrowthRate() float64 {
	if s.Metadata == nil {
		return 0
	}
	if v, ok := s.Metadata["growth_rate"].(float64); ok {
		return v
	}
	return 0
}

// Overrides describes a partial update to apply during Clone. Only fields
// explicitly set are applied; map fields are merged key-by-key onto a
// fresh copy of the base map, never replacing the whole map.
type Overrides struct {
	Timestamp *time.Time

	Cash           *float64
	RevenueMonthly *float64
	CostsMonthly   *float64
	Margin         *float64

	Headcount   *int
	Capacity    map[string]float64
	Utilization map[string]float64

	Demand    map[string]float64
	Pricing   map[string]float64
	CAC       map[string]float64
	ChurnRate *float64

	Inventory map[string]float64
	Backlog   map[string]float64
	LeadTimes map[string]float64

	ServiceLevel *float64

	RiskFlags       []string
	ComplianceScore *float64

	Metadata map[string]any
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeFloatMap(base, patch map[string]float64) map[string]float64 {
	out := cloneFloatMap(base)
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func mergeAnyMap(base, patch map[string]any) map[string]any {
	out := cloneAnyMap(base)
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone returns a new snapshot with Version incremented by one and the
// supplied overrides applied. The receiver is left untouched: CompanyState
// is produced once and never mutated in place.
func (s CompanyState) Clone(o Overrides) CompanyState {
	next := CompanyState{
		Timestamp:       s.Timestamp,
		Version:         s.Version + 1,
		Cash:            s.Cash,
		RevenueMonthly:  s.RevenueMonthly,
		CostsMonthly:    s.CostsMonthly,
		Margin:          s.Margin,
		Headcount:       s.Headcount,
		Capacity:        mergeFloatMap(s.Capacity, o.Capacity),
		Utilization:     mergeFloatMap(s.Utilization, o.Utilization),
		Demand:          mergeFloatMap(s.Demand, o.Demand),
		Pricing:         mergeFloatMap(s.Pricing, o.Pricing),
		CAC:             mergeFloatMap(s.CAC, o.CAC),
		ChurnRate:       s.ChurnRate,
		Inventory:       mergeFloatMap(s.Inventory, o.Inventory),
		Backlog:         mergeFloatMap(s.Backlog, o.Backlog),
		LeadTimes:       mergeFloatMap(s.LeadTimes, o.LeadTimes),
		ServiceLevel:    s.ServiceLevel,
		RiskFlags:       append([]string(nil), s.RiskFlags...),
		ComplianceScore: s.ComplianceScore,
		Metadata:        mergeAnyMap(s.Metadata, o.Metadata),
	}
	if o.Timestamp != nil {
		next.Timestamp = *o.Timestamp
	}
	if o.Cash != nil {
		next.Cash = *o.Cash
	}
	if o.RevenueMonthly != nil {
		next.RevenueMonthly = *o.RevenueMonthly
	}
	if o.CostsMonthly != nil {
		next.CostsMonthly = *o.CostsMonthly
	}
	if o.Margin != nil {
		next.Margin = *o.Margin
	}
	if o.Headcount != nil {
		next.Headcount = *o.Headcount
	}
	if o.ChurnRate != nil {
		next.ChurnRate = *o.ChurnRate
	}
	if o.ServiceLevel != nil {
		next.ServiceLevel = *o.ServiceLevel
	}
	if o.RiskFlags != nil {
		next.RiskFlags = append([]string(nil), o.RiskFlags...)
	}
	if o.ComplianceScore != nil {
		next.ComplianceScore = *o.ComplianceScore
	}
	return next
}

// DeepCopy returns an independent copy of s with every map field
// duplicated, but without the version bump and override semantics of
// Clone. Callers that hand a CompanyState to an agent or across a package
// boundary use this so the recipient can never reach back into the
// engine's live maps, while still preserving the exact snapshot (Version
// included) they were given.
func (s CompanyState) DeepCopy() CompanyState {
	next := s
	next.Capacity = cloneFloatMap(s.Capacity)
	next.Utilization = cloneFloatMap(s.Utilization)
	next.Demand = cloneFloatMap(s.Demand)
	next.Pricing = cloneFloatMap(s.Pricing)
	next.CAC = cloneFloatMap(s.CAC)
	next.Inventory = cloneFloatMap(s.Inventory)
	next.Backlog = cloneFloatMap(s.Backlog)
	next.LeadTimes = cloneFloatMap(s.LeadTimes)
	next.RiskFlags = append([]string(nil), s.RiskFlags...)
	next.Metadata = cloneAnyMap(s.Metadata)
	return next
}

// ToDict returns the canonical serialization of the state used both for
// hashing and for transport: a map with every field keyed by its lower
// snake-case name, sub-maps copied so the caller cannot mutate this
// snapshot through the returned value.
func (s CompanyState) ToDict() map[string]any {
	riskFlags := append([]string(nil), s.RiskFlags...)
	sort.Strings(riskFlags)
	return map[string]any{
		"timestamp":        s.Timestamp.UTC().Format(time.RFC3339Nano),
		"version":          s.Version,
		"cash":             s.Cash,
		"revenue_monthly":  s.RevenueMonthly,
		"costs_monthly":    s.CostsMonthly,
		"margin":           s.Margin,
		"headcount":        s.Headcount,
		"capacity":         cloneFloatMap(s.Capacity),
		"utilization":      cloneFloatMap(s.Utilization),
		"demand":           cloneFloatMap(s.Demand),
		"pricing":          cloneFloatMap(s.Pricing),
		"cac":              cloneFloatMap(s.CAC),
		"churn_rate":       s.ChurnRate,
		"inventory":        cloneFloatMap(s.Inventory),
		"backlog":          cloneFloatMap(s.Backlog),
		"lead_times":       cloneFloatMap(s.LeadTimes),
		"service_level":    s.ServiceLevel,
		"risk_flags":       riskFlags,
		"compliance_score": s.ComplianceScore,
		"metadata":         cloneAnyMap(s.Metadata),
		"runway_months":    s.RunwayMonths(),
	}
}

// Hash returns a deterministic BLAKE3 digest over the canonical
// serialization of the state. Two states with identical field values
// (including sub-map contents) hash identically regardless of map
// iteration order, since ToDict feeds encoding/json, which sorts map keys.
func (s CompanyState) Hash() [32]byte {
	// encoding/json marshals map[string]T with keys sorted lexically, which
	// combined with ToDict's fixed key set gives a canonical byte stream.
	b, err := json.Marshal(s.ToDict())
	if err != nil {
		// ToDict never produces a value json.Marshal rejects (no channels,
		// funcs, or cyclic structures), so this is unreachable in practice.
		panic("companystate: canonical encode failed: " + err.Error())
	}
	return blake3.Sum256(b)
}
