// Command snsim drives the service-network simulator: it loads a
// scenario XML file, runs the engine for a fixed number of ticks under
// a chosen policy and bouncer, and writes the per-tick and bouncer
// trace files.
//
// Usage:
//
//	snsim -scenario scenario.xml -policy FCFS -bouncer tendency -ticks 200
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/snsim/snsim/internal/scenario"
	"github.com/snsim/snsim/internal/sim"
	"github.com/snsim/snsim/internal/trace"
	"github.com/snsim/snsim/pkg/config"
	"github.com/snsim/snsim/pkg/logger"
	"github.com/snsim/snsim/pkg/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.New()

	fs := flag.NewFlagSet("snsim", flag.ContinueOnError)
	scenarioPath := fs.String("scenario", cfg.Simulation.ScenarioPath, "path to the SNSimScenario XML file")
	policyName := fs.String("policy", cfg.Simulation.Policy, "priority policy: FCFS, RatioBased, RevenueBased, PenaltyBased, ClassifiedPenaltyBased, FailedAttemptsBased")
	bouncerName := fs.String("bouncer", cfg.Simulation.Bouncer, "admission control: none, null, tendency")
	maxTicks := fs.Int("ticks", cfg.Simulation.MaxTicks, "maximum number of ticks to run")
	seedOverride := fs.Int64("seed", cfg.Simulation.SeedOverride, "override the scenario file's Seed parameter (0 = use scenario)")
	tickTracePath := fs.String("trace", cfg.Trace.TickTracePath, "output path for the per-tick trace file")
	bouncerTracePath := fs.String("bouncer-trace", cfg.Trace.BouncerTracePath, "output path for the bouncer trace file")
	metricsEnabled := fs.Bool("metrics", cfg.Metrics.Enabled, "serve Prometheus metrics at /metrics for the run's duration")
	metricsAddr := fs.String("metrics-addr", cfg.Metrics.Addr, "listen address for /metrics (only if -metrics is set)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "snsim: -scenario is required")
		fs.Usage()
		return 2
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	sc, err := scenario.Load(*scenarioPath, log)
	if err != nil {
		log.Errorf("failed to parse scenario: %v", err)
		return 1
	}
	if *seedOverride != 0 {
		sc.Seed = *seedOverride
	}

	policy, ok := policyByName(*policyName)
	if !ok {
		log.Errorf("unknown policy %q", *policyName)
		return 1
	}

	bouncer, err := bouncerByName(*bouncerName)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	engine := sc.Engine(policy, bouncer)

	if *metricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server: %v", err)
			}
		}()
		defer server.Close()
	}

	log.Infof("starting simulation: scenario=%s policy=%s bouncer=%s ticks=%d",
		*scenarioPath, policy.Name(), bouncerLabel(bouncer), *maxTicks)

	entries := engine.Start(*maxTicks)

	for _, e := range entries {
		metrics.Observe(e.ActiveJobs, e.ActiveServices, e.AbortedJobs, e.DeclinedJobs, e.AccRevenue, e.AccPenalty, e.Resources)
	}

	if err := trace.WriteTickTraceFile(*tickTracePath, entries); err != nil {
		log.Errorf("failed to write tick trace: %v", err)
		return 1
	}
	if bouncer != nil {
		if err := trace.WriteBouncerTraceFile(*bouncerTracePath, bouncer.TraceEntries()); err != nil {
			log.Errorf("failed to write bouncer trace: %v", err)
			return 1
		}
	}

	log.Infof("simulation finished after %d ticks", len(entries))
	return 0
}

func policyByName(name string) (sim.Policy, bool) {
	switch name {
	case "FCFS", "":
		return sim.FCFSPolicy{}, true
	case "RatioBased":
		return sim.RatioBasedPolicy{}, true
	case "RevenueBased":
		return sim.RevenueBasedPolicy{}, true
	case "PenaltyBased":
		return sim.PenaltyBasedPolicy{}, true
	case "ClassifiedPenaltyBased":
		return sim.ClassifiedPenaltyBasedPolicy{}, true
	case "FailedAttemptsBased":
		return sim.FailedAttemptsBasedPolicy{}, true
	default:
		return nil, false
	}
}

func bouncerByName(name string) (sim.Bouncer, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "null":
		return sim.NewNullBouncer(0), nil
	case "tendency":
		return sim.NewTendencyBouncer(), nil
	default:
		return nil, fmt.Errorf("unknown bouncer %q", name)
	}
}

func bouncerLabel(b sim.Bouncer) string {
	if b == nil {
		return "none"
	}
	return b.Name()
}
