package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nstehr/masp/agent"
	"github.com/nstehr/masp/config"
	"github.com/nstehr/masp/ipc"
	"github.com/nstehr/masp/journal"
	"github.com/nstehr/masp/llm"
	"github.com/nstehr/masp/logs"
	"github.com/nstehr/masp/model"
	"github.com/nstehr/masp/oracle"
	"github.com/nstehr/masp/rules"
	"github.com/nstehr/masp/sandbox"
	"github.com/nstehr/masp/telemetry"
	"github.com/spf13/cobra"
)

// setup loads configuration and installs the default logger.
func setup(cfgPath string) (*config.Config, func() error, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, closeLog, err := logs.New(logs.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Journal: cfg.Log.Journal,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, closeLog, nil
}

func newValidator(cfg *config.Config) (*sandbox.Validator, error) {
	probes := append(rules.DefaultRules(), rules.ParseRules(cfg.Validation.Probes)...)
	engine, err := rules.NewEngine(probes)
	if err != nil {
		return nil, err
	}
	return sandbox.New(engine, cfg.Validation.Timeout), nil
}

func runCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one learn, author, validate and deploy attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closeLog, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer closeLog()

			fmt.Println(banner)
			slog.Info("starting masp", "agent", cfg.Agent.ID)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	metrics := telemetry.NewMetrics()
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				slog.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	var recorder journal.Recorder = journal.Nop{}
	if addr := cfg.Journal.RedisAddr; addr != "" {
		r, err := journal.Dial(ctx, addr, cfg.Journal.Key, cfg.Journal.MaxEntries)
		if err != nil {
			slog.Warn("deployment journal unavailable", "addr", addr, "error", err)
		} else {
			defer r.Close()
			recorder = r
		}
	}

	validator, err := newValidator(cfg)
	if err != nil {
		return err
	}

	gemini := llm.NewGemini(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Timeout)
	a := agent.New(agent.Deps{
		AgentID:   cfg.Agent.ID,
		Oracle:    oracle.NewClient(cfg.Oracle.URL, cfg.Oracle.Timeout),
		Author:    agent.NewStrategist(gemini, cfg.LLM.Timeout),
		Validator: validator,
		Dial: func(ctx context.Context) (*ipc.Connection, error) {
			return ipc.Dial(ctx, cfg.Game.URL, cfg.Game.ConnectTimeout)
		},
		AckTimeout: cfg.Game.AckTimeout,
		Metrics:    metrics,
		Journal:    recorder,
	})

	report, err := a.Run(ctx)
	slog.Info("deployment report", "session", report.SessionID, "outcome", report.Outcome, "reason", report.Reason)
	if report.Strategy != nil {
		slog.Info("deployed strategy", "origin", report.Strategy.Origin, "verdict", report.Strategy.Verdict)
	}
	if err != nil {
		return fmt.Errorf("deployment %s: %w", report.Outcome, err)
	}
	return nil
}

func statusCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the configuration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg.Status(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func checkCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Dry-run a strategy body through the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer closeLog()

			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			validator, err := newValidator(cfg)
			if err != nil {
				return err
			}

			v := validator.Validate(model.Candidate{Source: string(src), Origin: model.OriginGenerated})
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "verdict: %s\n", v.Verdict)
			if v.Reason != "" {
				fmt.Fprintf(w, "reason:  %s\n", v.Reason)
			}
			if v.Valid() {
				fmt.Fprintf(w, "result:  %v\n", v.Result)
			}
			for _, f := range v.Findings {
				fmt.Fprintf(w, "finding: %s\n", f)
			}
			if !v.Valid() {
				return errors.New("strategy rejected")
			}
			return nil
		},
	}
}

func historyCMD(cfgPath *string) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent deployment attempts from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.Journal.RedisAddr == "" {
				return errors.New("journal.redis_addr is not configured")
			}

			r, err := journal.Dial(cmd.Context(), cfg.Journal.RedisAddr, cfg.Journal.Key, cfg.Journal.MaxEntries)
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := r.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(w, "%s  %-36s  %-11s  %-9s  %s\n",
					e.StartedAt.Format(time.RFC3339), e.SessionID, e.Outcome, e.Origin, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	return cmd
}
