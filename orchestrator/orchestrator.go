// Package orchestrator implements the Agent Orchestrator (C8): the
// per-run coordination point that drives a decision cycle across
// role-typed agents, gates their proposals through the Policy Engine,
// applies approved actions via the Simulation Engine, and records every
// decision to the Audit Ledger.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chronicle-sim/core/action"
	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/engine"
	"github.com/chronicle-sim/core/ledger"
	"github.com/chronicle-sim/core/observability/metrics"
	"github.com/chronicle-sim/core/observability/tracing"
	"github.com/chronicle-sim/core/policy"
	"github.com/chronicle-sim/core/timelock"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DecisionContext is what every non-population agent observes: the
// time-locked InformationContext plus whatever the population agent
// contributed this cycle (nil on a cycle with no population agent).
type DecisionContext struct {
	Info           timelock.InformationContext
	MarketDynamics map[string]any
}

// Agent is the contract every role-typed decision agent satisfies. Per
// spec, Propose MUST NOT call back into the engine or ledger: it reads an
// immutable snapshot and returns a plain list.
type Agent interface {
	Role() string
	Propose(ctx context.Context, dc DecisionContext, state companystate.CompanyState, constraints engine.Constraints) ([]action.Action, error)
}

// PopulationResult is what the distinguished "population" agent
// contributes before the rest of the roster runs: a market snapshot
// folded into every other agent's DecisionContext, plus its own
// market-influence actions.
type PopulationResult struct {
	MarketDynamics map[string]any
	Actions        []action.Action
}

// PopulationAgent is the population role's distinct contract: it alone
// produces the enhanced market context the rest of the roster conditions
// on.
type PopulationAgent interface {
	Propose(ctx context.Context, info timelock.InformationContext, state companystate.CompanyState) (PopulationResult, error)
}

// PendingApproval is a queued, escalated action awaiting an external
// approve_action call.
type PendingApproval struct {
	Action     action.Action
	AgentRole  string
	ProposedAt time.Time
}

// ActionOutcome records what happened to one action during a cycle, for
// the caller and for tests asserting ordering guarantees.
type ActionOutcome struct {
	Action   action.Action
	Decision action.Decision
	Reason   string
	Applied  bool
	Error    error
}

// CycleResult is the full, ordered record of one decision cycle.
type CycleResult struct {
	Outcomes []ActionOutcome
}

// Orchestrator drives one run's decision cycles.
type Orchestrator struct {
	runID  string
	engine *engine.Engine
	policy *policy.Engine
	ledger *ledger.Ledger
	logger *slog.Logger

	population PopulationAgent
	roles      []string // registration order, excluding population
	agents     map[string]Agent

	perAgentDeadline time.Duration
	limiter          *rate.Limiter

	mu               sync.Mutex
	pendingApprovals map[string]PendingApproval
}

// Config configures an Orchestrator.
type Config struct {
	RunID            string
	Engine           *engine.Engine
	Policy           *policy.Engine
	Ledger           *ledger.Ledger
	Logger           *slog.Logger
	PerAgentDeadline time.Duration
	// CyclesPerSecond bounds how many decision cycles this orchestrator
	// will dispatch per wall-second when driven faster than real time
	// (e.g. a bulk backtest). Zero disables the limiter.
	CyclesPerSecond float64
}

// New constructs an Orchestrator with no agents registered; callers add
// agents with RegisterAgent / RegisterPopulation before calling Cycle.
func New(cfg Config) *Orchestrator {
	deadline := cfg.PerAgentDeadline
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.CyclesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.CyclesPerSecond), 1)
	}

	return &Orchestrator{
		runID:            cfg.RunID,
		engine:           cfg.Engine,
		policy:           cfg.Policy,
		ledger:           cfg.Ledger,
		logger:           logger,
		agents:           make(map[string]Agent),
		perAgentDeadline: deadline,
		limiter:          limiter,
		pendingApprovals: make(map[string]PendingApproval),
	}
}

// RegisterPopulation sets the distinguished population agent that runs
// first each cycle.
func (o *Orchestrator) RegisterPopulation(a PopulationAgent) {
	o.population = a
}

// RegisterAgent adds a non-population agent to the roster, in the order
// its proposals are merged after the population pass.
func (o *Orchestrator) RegisterAgent(a Agent) {
	role := a.Role()
	if _, exists := o.agents[role]; !exists {
		o.roles = append(o.roles, role)
	}
	o.agents[role] = a
}

// Cycle runs one full decision cycle: population pass, concurrent agent
// pass, deterministic merge, policy gating, application, and audit.
func (o *Orchestrator) Cycle(ctx context.Context, constraints engine.Constraints) (result CycleResult, err error) {
	ctx, span := tracing.StartCycle(ctx, o.runID)
	defer func() { tracing.EndWithError(span, err) }()

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return CycleResult{}, err
		}
	}

	info, err := o.engine.GetInformationContext()
	if err != nil {
		return CycleResult{}, err
	}
	snapshot := o.engine.StateSnapshot()

	dc := DecisionContext{Info: info}
	var populationActions []action.Action
	if o.population != nil {
		popCtx, cancel := context.WithTimeout(ctx, o.perAgentDeadline)
		result, err := o.population.Propose(popCtx, info, snapshot)
		cancel()
		if err != nil {
			o.logger.Warn("population agent proposal failed, treating as empty", "error", err)
		} else {
			dc.MarketDynamics = result.MarketDynamics
			populationActions = result.Actions
		}
	}

	proposals := o.runAgentPassLocked(ctx, dc, snapshot, constraints)

	merged := make([]action.Action, 0, len(populationActions))
	merged = append(merged, populationActions...)
	for _, role := range o.roles {
		merged = append(merged, proposals[role]...)
	}
	for i := range merged {
		if merged[i].ID == "" {
			merged[i].ID = uuid.NewString()
		}
	}

	result = CycleResult{Outcomes: make([]ActionOutcome, 0, len(merged))}
	for _, act := range merged {
		outcome := o.gateAndApply(act)
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

// runAgentPassLocked runs every registered non-population agent
// concurrently under an errgroup, each bound by its own per-agent
// deadline. An agent that errors or exceeds its deadline contributes an
// empty proposal list rather than failing the cycle.
func (o *Orchestrator) runAgentPassLocked(ctx context.Context, dc DecisionContext, snapshot companystate.CompanyState, constraints engine.Constraints) map[string][]action.Action {
	results := make(map[string][]action.Action, len(o.roles))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, role := range o.roles {
		role := role
		agent := o.agents[role]
		g.Go(func() error {
			agentCtx, cancel := context.WithTimeout(gctx, o.perAgentDeadline)
			defer cancel()
			actions, err := agent.Propose(agentCtx, dc, snapshot, constraints)
			if err != nil {
				o.logger.Warn("agent proposal failed, treating as empty", "role", role, "error", err)
				actions = nil
			}
			mu.Lock()
			results[role] = actions
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // every goroutine above always returns nil; errors are absorbed per-agent

	return results
}

// gateAndApply routes one action through the Policy Engine, applies it on
// approval, and emits the audit entries the decision produces.
func (o *Orchestrator) gateAndApply(act action.Action) ActionOutcome {
	o.appendAudit(act.AgentRole, "action_proposed", act, nil)

	state := o.engine.StateSnapshot()
	verdict := o.policy.EvaluateAction(act, state)

	metrics.Metrics().RecordAction(act.AgentRole, string(verdict.Decision))

	switch verdict.Decision {
	case action.Deny:
		o.appendAudit(act.AgentRole, "action_denied", act, map[string]any{
			"reason":         verdict.Reason,
			"violated_rules": verdict.ViolatedRules,
		})
		return ActionOutcome{Action: act, Decision: action.Deny, Reason: verdict.Reason}

	case action.Escalate:
		o.mu.Lock()
		o.pendingApprovals[act.ID] = PendingApproval{Action: act, AgentRole: act.AgentRole, ProposedAt: time.Now()}
		o.mu.Unlock()
		o.appendAudit(act.AgentRole, "action_escalated", act, map[string]any{"reason": verdict.Reason})
		return ActionOutcome{Action: act, Decision: action.Escalate, Reason: verdict.Reason}

	default: // action.Approve
		ok, err := o.engine.ApplyAction(act, act.AgentRole)
		if err != nil {
			o.appendAudit(act.AgentRole, "action_failed", act, map[string]any{"reason": err.Error()})
			return ActionOutcome{Action: act, Decision: action.Approve, Applied: false, Error: err}
		}
		o.appendAudit(act.AgentRole, "action_applied", act, nil)
		return ActionOutcome{Action: act, Decision: action.Approve, Applied: ok}
	}
}

// ApproveAction re-runs engine.apply_action for a previously escalated
// action. On success it is removed from the pending-approval queue and
// an "action_approved" entry is recorded; on failure it remains queued.
func (o *Orchestrator) ApproveAction(actionID, approvedBy string) (bool, error) {
	o.mu.Lock()
	pending, ok := o.pendingApprovals[actionID]
	o.mu.Unlock()
	if !ok {
		return false, nil
	}

	applied, err := o.engine.ApplyAction(pending.Action, pending.AgentRole)
	if err != nil || !applied {
		return false, err
	}

	o.mu.Lock()
	delete(o.pendingApprovals, actionID)
	o.mu.Unlock()

	o.appendAudit(pending.AgentRole, "action_approved", pending.Action, map[string]any{"approved_by": approvedBy})
	return true, nil
}

// PendingApprovals returns a snapshot of the current approval queue.
func (o *Orchestrator) PendingApprovals() []PendingApproval {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]PendingApproval, 0, len(o.pendingApprovals))
	for _, p := range o.pendingApprovals {
		out = append(out, p)
	}
	return out
}

// appendAudit records one decision for act. The ledger dedups purely on
// data["id"], so that key must be unique per (action, entry_type), not
// per action alone: a single action id passes through action_proposed,
// action_denied/escalated/applied, and (on escalation) action_approved
// in turn, and each of those is a distinct decision the spec requires to
// land as its own entry. The bare action id is preserved separately as
// "action_id" so a reader can still correlate every entry for one action.
func (o *Orchestrator) appendAudit(agentRole, entryType string, act action.Action, extra map[string]any) {
	data := map[string]any{
		"id":        act.ID + ":" + entryType,
		"action_id": act.ID,
		"type":      string(act.Type),
		"reason":    act.Reason,
	}
	for k, v := range extra {
		data[k] = v
	}
	if _, err := o.ledger.Append(o.runID, o.engine.CurrentTime().Unix(), entryType, data, agentRole); err != nil {
		o.logger.Error("failed to append audit entry", "entry_type", entryType, "action_id", act.ID, "error", err)
		return
	}
	metrics.Metrics().RecordLedgerAppend(entryType)
}
