package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/dockagent/config"
	core "github.com/mohammad-safakhou/dockagent/internal/agent/core"
	"github.com/mohammad-safakhou/dockagent/internal/agent/telemetry"
	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"github.com/mohammad-safakhou/dockagent/internal/executor"
	"github.com/mohammad-safakhou/dockagent/internal/knowledge"
	"github.com/mohammad-safakhou/dockagent/internal/server"
	"github.com/mohammad-safakhou/dockagent/internal/store"
	"github.com/mohammad-safakhou/dockagent/internal/tools"
)

func main() {
	var root = &cobra.Command{Use: "dockagent", SilenceUsage: true}
	root.AddCommand(serveCMD(), runCMD(), toolsCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var addr string
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return server.Run(cfg, addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is the standard search paths)")
	return serve
}

func runCMD() *cobra.Command {
	var (
		cfgPath     string
		query       string
		proteinPath string
		ligandPath  string
		maxSteps    int
		showTrace   bool
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Run one docking session and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return fmt.Errorf("--query is required")
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			protein, err := readFileIfSet(proteinPath)
			if err != nil {
				return err
			}
			ligand, err := readFileIfSet(ligandPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			storage, err := store.NewStorage(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			lib, err := knowledge.NewLibrary()
			if err != nil {
				return err
			}
			registry, err := capability.NewRegistry()
			if err != nil {
				return err
			}
			provider, err := core.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			invoker := executor.New(cfg.Agent, tools.Runners(lib))

			tele := telemetry.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()

			logger := log.New(os.Stderr, "[AGENT] ", log.LstdFlags)
			orch, err := core.NewOrchestrator(cfg, logger, tele, registry, provider, invoker, storage)
			if err != nil {
				return err
			}

			timeout := cfg.General.MaxProcessingTime
			if timeout <= 0 {
				timeout = 30 * time.Minute
			}
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			result, err := orch.Run(runCtx, core.Request{
				Query:      query,
				ProteinPDB: protein,
				LigandSDF:  ligand,
				MaxSteps:   maxSteps,
			})
			if err != nil {
				return err
			}

			if showTrace {
				fmt.Println(result.Trace)
			}
			fmt.Println(result.FinalAnswer)
			fmt.Fprintf(os.Stderr, "session %s %s in %.1fs\n", result.SessionID, result.State, result.TotalTime)
			return nil
		},
	}
	run.Flags().StringVarP(&query, "query", "q", "", "docking request, e.g. \"dock aspirin against COX-2\"")
	run.Flags().StringVar(&proteinPath, "protein", "", "path to a receptor PDB file")
	run.Flags().StringVar(&ligandPath, "ligand", "", "path to a ligand SDF file")
	run.Flags().IntVar(&maxSteps, "max-steps", 0, "step ceiling for this session (0 = config default)")
	run.Flags().BoolVar(&showTrace, "show-trace", false, "print the full reasoning trace before the answer")
	run.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is the standard search paths)")
	return run
}

func toolsCMD() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool manifest the planner sees",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := capability.NewRegistry()
			if err != nil {
				return err
			}
			if asJSON {
				out, err := json.MarshalIndent(registry.List(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Println(registry.DescribeForPlanner())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tool descriptors as JSON instead of manifest text")
	return cmd
}

func migrateCMD() *cobra.Command {
	var migDir string
	var migDirDefault = "file://migrations"
	var dsn string
	var direction string
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if migDir == "" {
				migDir = migDirDefault
			}
			// empty dsn falls back to DATABASE_URL / POSTGRES_* inside Migrate
			return server.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", migDirDefault, "migrations source (file://migrations)")
	migrate.Flags().StringVar(&dsn, "dsn", "", "postgres connection string (default from environment)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}

func readFileIfSet(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
