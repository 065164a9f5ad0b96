package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"robustroute/automorphism"
	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/config"
	"robustroute/routing"
	"robustroute/solver"
	"robustroute/topology"
)

func initLogging(cfg config.LogConfig) {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		os.MkdirAll(filepath.Dir(cfg.File), 0755)

		// Configure log rotation with lumberjack
		fileLogger := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stdout, fileLogger)
	}
	log.SetOutput(out)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.Infof("Logging initialized: file=%s, stdout=enabled, level=%s", cfg.File, level)
}

func loadGraph(cfg *config.Config) (*topology.Graph, error) {
	if cfg.Run.Topology != "" {
		return topology.LoadFile(cfg.Run.Topology)
	}
	gen := cfg.Generator
	return topology.Generate(gen.Kind, gen.A, gen.B, gen.Servers, gen.Capacity)
}

func main() {
	configPath := flag.String("config", "", "TOML config file")
	topologyPath := flag.String("topology", "", "topology file (YAML or JSON), overrides run.topology")
	mode := flag.String("mode", "", "routing mode, overrides run.mode")
	objective := flag.String("objective", "", "optimizer objective (linear or log), overrides optimizer.objective")
	iteration := flag.Int("verify-iteration", -1, "verify the checkpointed robust iteration instead of running the pipeline")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration failed, err:%v\n", err)
		os.Exit(1)
	}
	if *topologyPath != "" {
		cfg.Run.Topology = *topologyPath
	}
	if *mode != "" {
		cfg.Run.Mode = *mode
	}
	if *objective != "" {
		cfg.Optimizer.Objective = *objective
	}
	initLogging(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *iteration); err != nil {
		log.Fatalf("robustroute failed, err:%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, iteration int) error {
	g, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	log.Infof("topology %s: nodes=%d servers=%d links=%d demands=%d",
		g.Name(), g.NumNodes(), len(g.Servers()), len(g.Links()), len(g.Demands()))

	pool, err := common.NewPool(common.PoolConfig{MaxWorkers: cfg.Pool.Workers})
	if err != nil {
		return err
	}
	defer pool.Release()

	store, err := checkpoint.Open(ctx, cfg.Checkpoint)
	if err != nil {
		return err
	}
	defer store.Close()

	var oracle automorphism.Oracle = automorphism.NewRefinementOracle()
	if cfg.Run.Oracle == "trivial" {
		oracle = automorphism.TrivialOracle{}
	}

	pm := routing.NewPipelineManager(store, solver.NewSimplexEngine(cfg.Solver), oracle, pool)
	if iteration >= 0 {
		res, err := pm.VerifyIteration(ctx, g, cfg.Optimizer.Objective, iteration)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "iteration %d of %s: verified throughput=%.6f max_load=%.6f bottleneck=%s\n",
			iteration, g.Name(), res.Throughput, res.MaxLoad, res.Bottleneck)
		return nil
	}
	report, err := pm.Run(ctx, g, routing.Options{
		Mode:      cfg.Run.Mode,
		Optimizer: cfg.Optimizer,
		Heuristic: cfg.Heuristic,
		Verify:    cfg.Run.Verify,
	})
	if err != nil {
		return err
	}
	printReport(os.Stdout, report)
	return nil
}

func printReport(w io.Writer, r *routing.Report) {
	fmt.Fprintf(w, "run %s topology=%s mode=%s\n", r.RunID, r.Topology, r.Mode)
	if s := r.Summary; s != nil {
		fmt.Fprintf(w, "throughput=%.6f total=%.4f fairness=%.4f iterations=%d converged=%v\n",
			s.Throughput, s.TotalThroughput, s.Fairness, s.Iterations, s.Converged)
		for _, d := range s.Demands {
			fmt.Fprintf(w, "  %s x%d: %.6f\n", d.Demand, d.OrbitSize, d.Throughput)
		}
	}
	if v := r.Verified; v != nil {
		fmt.Fprintf(w, "verified throughput=%.6f max_load=%.6f bottleneck=%s\n", v.Throughput, v.MaxLoad, v.Bottleneck)
	}
	for _, st := range r.Timings.Stages {
		fmt.Fprintf(w, "  stage %-13s %v\n", st.Stage, st.Elapsed)
	}
}
