// Command simcore drives a single company-simulation run from a
// blueprint/timeline pair to a fixed number of ticks or an end date,
// printing a metrics snapshot and audit bundle on completion.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/chronicle-sim/core/config"
	"github.com/chronicle-sim/core/crypto"
	"github.com/chronicle-sim/core/engine"
	"github.com/chronicle-sim/core/ledger"
	"github.com/chronicle-sim/core/observability/logging"
	"github.com/chronicle-sim/core/simerr"
	"github.com/chronicle-sim/core/storage"

	"github.com/google/uuid"
)

const (
	exitSuccess         = 0
	exitInvalidInput    = 1
	exitIntegrityFailed = 2
	exitRuntimeAbort    = 3
)

func main() {
	blueprintPath := flag.String("blueprint", "", "path to a blueprint TOML file")
	timelinePath := flag.String("timeline", "", "path to a timeline YAML file")
	seed := flag.Int64("seed", 1, "deterministic RNG seed")
	tickDays := flag.Float64("tick-days", 7, "simulated days advanced per tick")
	maxTicks := flag.Uint64("max-ticks", 0, "stop after this many ticks (0: run to end_date)")
	runID := flag.String("run-id", "", "run identifier (generated if empty)")
	dataDir := flag.String("data-dir", "./simcore-data", "directory for ledger storage and exported artifacts")
	parquetPath := flag.String("export-parquet", "", "optional path to write the audit chain as a parquet file")
	env := flag.String("env", "dev", "deployment environment label for structured logs")
	flag.Parse()

	logger := logging.Setup("simcore", *env)

	if *blueprintPath == "" || *timelinePath == "" {
		logger.Error("blueprint and timeline are required")
		os.Exit(exitInvalidInput)
	}

	blueprint, err := config.LoadBlueprint(*blueprintPath)
	if err != nil {
		logger.Error("failed to load blueprint", "error", err)
		os.Exit(exitInvalidInput)
	}
	timeline, err := config.LoadTimeline(*timelinePath)
	if err != nil {
		logger.Error("failed to load timeline", "error", err)
		os.Exit(exitInvalidInput)
	}

	id := *runID
	if id == "" {
		id = uuid.NewString()
	}

	eng, err := engine.New(blueprint, timeline, *seed, *tickDays, id, nil)
	if err != nil {
		logger.Error("failed to construct engine", "error", err)
		os.Exit(exitInvalidInput)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(exitRuntimeAbort)
	}
	db, err := storage.NewLevelDB(*dataDir)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(exitRuntimeAbort)
	}
	defer db.Close()

	signingKey, err := crypto.GenerateSigningKey()
	if err != nil {
		logger.Error("failed to generate signing key", "error", err)
		os.Exit(exitRuntimeAbort)
	}
	auditLedger := ledger.New(db, signingKey)

	exitCode := runTicks(eng, *maxTicks, logger)
	if exitCode != exitSuccess {
		os.Exit(exitCode)
	}

	if err := eng.CreateCheckpoint(db, *dataDir, "final"); err != nil {
		logger.Error("failed to create final checkpoint", "error", err)
		os.Exit(exitIntegrityFailed)
	}

	if err := auditLedger.VerifyChain(id); err != nil {
		logger.Error("audit chain verification failed", "error", err)
		os.Exit(exitIntegrityFailed)
	}

	printResults(eng, auditLedger, id)

	if *parquetPath != "" {
		if err := auditLedger.ExportParquet(id, *parquetPath); err != nil {
			logger.Error("failed to export parquet audit chain", "error", err)
			os.Exit(exitIntegrityFailed)
		}
	}

	os.Exit(exitSuccess)
}

func runTicks(eng *engine.Engine, maxTicks uint64, logger *slog.Logger) int {
	var ticked uint64
	for {
		if maxTicks > 0 && ticked >= maxTicks {
			return exitSuccess
		}
		advanced, err := eng.Tick()
		if err != nil {
			if simerr.OfKind(err, simerr.KindIntegrityFailure) {
				logger.Error("tick failed integrity check", "error", err)
				return exitIntegrityFailed
			}
			logger.Error("tick failed", "error", err)
			return exitRuntimeAbort
		}
		if !advanced {
			return exitSuccess
		}
		ticked++
	}
}

func printResults(eng *engine.Engine, auditLedger *ledger.Ledger, runID string) {
	state := eng.StateSnapshot()
	metrics := map[string]any{
		"cash":          state.Cash,
		"runway_months": state.RunwayMonths(),
		"revenue":       state.RevenueMonthly,
		"costs":         state.CostsMonthly,
		"headcount":     state.Headcount,
		"service_level": state.ServiceLevel,
		"version":       state.Version,
	}
	encoded, _ := json.MarshalIndent(metrics, "", "  ")
	fmt.Println(string(encoded))

	bundle, err := auditLedger.ExportBundle(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to export audit bundle: %v\n", err)
		return
	}
	bundleJSON, _ := json.MarshalIndent(bundle, "", "  ")
	fmt.Println(string(bundleJSON))
}
