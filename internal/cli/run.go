package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/calendar-agent/internal/config"
	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

// RunFlags are the per-run overrides of the configured budget.
type RunFlags struct {
	Model        string
	MaxSteps     int
	MaxToolCalls int
	Timeout      time.Duration
	Dev          bool
	NoTools      bool
	HistoryFile  string
}

var runFlags RunFlags

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Run one orchestration and print the answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runOnce,
}

func init() {
	addRunFlags(runCmd, &runFlags)
	runCmd.Flags().StringVar(&runFlags.HistoryFile, "history", "", "JSON file with prior chat turns ([{\"role\":...,\"content\":...}])")
}

func addRunFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringVar(&f.Model, "model", "", "model identifier, e.g. openai/gpt-4o (default from AGENT_MODEL)")
	cmd.Flags().IntVar(&f.MaxSteps, "max-steps", 0, "maximum decision/evaluation/tool steps")
	cmd.Flags().IntVar(&f.MaxToolCalls, "max-tool-calls", 0, "maximum tool invocations")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "per-call timeout for tools and model requests")
	cmd.Flags().BoolVar(&f.Dev, "dev", false, "development mode: debug logs and a run transcript")
	cmd.Flags().BoolVar(&f.NoTools, "no-tools", false, "answer from the chat context only")
}

// request builds an orchestration request from config and flag overrides.
func (f RunFlags) request(cfg *config.Config, message string, history []orchestrator.Turn, registry orchestrator.Registry) orchestrator.Request {
	budget := cfg.Budget()
	if f.MaxSteps > 0 {
		budget.MaxSteps = f.MaxSteps
	}
	if f.MaxToolCalls > 0 {
		budget.MaxToolCalls = f.MaxToolCalls
	}
	if f.Timeout > 0 {
		budget.CallTimeout = f.Timeout
	}
	model := cfg.Model
	if f.Model != "" {
		model = f.Model
	}
	return orchestrator.Request{
		Message:  message,
		History:  history,
		Registry: registry,
		Model:    model,
		Budget:   budget,
		Options: orchestrator.Options{
			DisableTools:    f.NoTools,
			DevelopmentMode: f.Dev || cfg.DevelopmentMode,
		},
	}
}

func readHistory(path string) ([]orchestrator.Turn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var turns []orchestrator.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	for i, t := range turns {
		if strings.TrimSpace(t.Role) == "" {
			return nil, fmt.Errorf("history turn %d has no role", i)
		}
	}
	return turns, nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	history, err := readHistory(runFlags.HistoryFile)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orchestrator.Orchestrate(ctx, runFlags.request(cfg, args[0], history, a.registry))
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result, globalFlags.JSON)
}

func printResult(w io.Writer, r orchestrator.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintln(w, r.Response)
	if r.Transcript != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- transcript ---")
		fmt.Fprint(w, r.Transcript)
	}
	if !r.Success {
		return fmt.Errorf("run %s aborted: %w", r.RunID, r.Err())
	}
	return nil
}

// withSignals cancels the returned context on Ctrl-C.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
