package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/bulk"
	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/history"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/ops"
	"github.com/rshade/bulkops/internal/tui"
)

// Output formats for run.
const (
	outputText = "text"
	outputJSON = "json"
)

// runFlags holds the flags of the run command.
type runFlags struct {
	itemsFile     string
	items         []string
	mode          string
	batchSize     int
	delay         time.Duration
	timeout       time.Duration
	rate          float64
	preset        string
	allowFailures bool
	appendItem    bool
	noHistory     bool
	noTUI         bool
	output        string
	dir           string
	env           []string
}

// runPlan is a fully resolved run: defaults, preset and flags applied.
type runPlan struct {
	Command   string
	Mode      string
	BatchSize int
	Delay     time.Duration
	Timeout   time.Duration
	Rate      float64
}

// runner is the shared signature of bulk.RunSequential and bulk.RunParallel.
type runner func(
	ctx context.Context,
	items []string,
	op bulk.Operation[string, string],
	cfg bulk.Config[string],
) ([]bulk.Result[string], error)

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command template>",
		Short: "Run a command once per item",
		Long: `Runs the command template once per item and reports a summary.

Every "{}" in the template is replaced by the item. The template is split
with shell quoting rules but no shell is started, so items are never
interpreted by a shell. A failing item never stops the run.

In sequential mode items run one at a time; --batch-size groups them so that
--delay pauses between groups. In parallel mode --batch-size items run at
once and the next group starts when the whole group has finished.`,
		Example: `  bulkops run --items ids.txt -- ./close-requisition {}
  cat ids.txt | bulkops run --items - --mode parallel --batch-size 10 -- curl -fsS -X DELETE https://hr.example.com/api/candidates/{}
  bulkops run --item 17 --item 18 --output json -- echo {}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.itemsFile, "items", "f", "", "file with one item per line (- for stdin)")
	f.StringArrayVarP(&flags.items, "item", "i", nil, "item to process (repeatable)")
	f.StringVarP(&flags.mode, "mode", "m", "", "scheduling mode: sequential or parallel")
	f.IntVarP(&flags.batchSize, "batch-size", "b", 0, "chunk size; in parallel mode the concurrency cap (0 = mode default)")
	f.DurationVar(&flags.delay, "delay", 0, "pause between chunks in sequential mode")
	f.DurationVar(&flags.timeout, "timeout", 0, "per-item timeout (0 = none)")
	f.Float64Var(&flags.rate, "rate", 0, "maximum items started per second (0 = unlimited)")
	f.StringVarP(&flags.preset, "preset", "p", "", "load command and settings from a saved preset")
	f.BoolVar(&flags.allowFailures, "allow-failures", false, "exit 0 even when some items failed")
	f.BoolVar(&flags.appendItem, "append-item", false, "append the item as the last argument when the template has no {}")
	f.BoolVar(&flags.noHistory, "no-history", false, "do not record this run in history")
	f.BoolVar(&flags.noTUI, "no-tui", false, "print plain progress lines even on a terminal")
	f.StringVarP(&flags.output, "output", "o", outputText, "output format: text or json")
	f.StringVar(&flags.dir, "dir", "", "working directory for the command")
	f.StringArrayVar(&flags.env, "env", nil, "extra KEY=VALUE environment variable for the command (repeatable)")

	return cmd
}

// executeRun resolves the run plan, runs it and renders the outcome.
func executeRun(cmd *cobra.Command, args []string, flags runFlags) error {
	if flags.output != outputText && flags.output != outputJSON {
		return fmt.Errorf("unsupported output format %q (want %s or %s)", flags.output, outputText, outputJSON)
	}

	cfg := config.GetGlobalConfig()
	store, storeErr := openHistory(cfg)
	if storeErr != nil {
		logger.Warn().Err(storeErr).Msg("history unavailable, run will not be recorded")
	}

	plan, err := resolvePlan(cmd, args, flags, cfg, store)
	if err != nil {
		return err
	}

	items, err := collectItems(cmd.InOrStdin(), flags.itemsFile, flags.items)
	if err != nil {
		return err
	}

	run, err := runnerFor(plan.Mode)
	if err != nil {
		return err
	}

	env, err := commandEnv(flags.env)
	if err != nil {
		return err
	}

	op, err := ops.Exec(plan.Command, ops.ExecOptions{Dir: flags.dir, Env: env, AppendItem: flags.appendItem})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runID := logging.GetOrGenerateRunID(ctx)
	runLogger := logger.With().Str("run_id", runID).Logger()
	ctx = runLogger.WithContext(logging.ContextWithRunID(ctx, runID))

	op = ops.WithTimeout(op, plan.Timeout)
	op = ops.WithRateLimit(op, ops.NewLimiter(plan.Rate))
	op = ops.WithLogging(op, runLogger, identity)

	bulkCfg := bulk.Config[string]{
		BatchSize:       plan.BatchSize,
		InterBatchDelay: plan.Delay,
		LabelOf:         identity,
	}

	runLogger.Info().
		Str("mode", plan.Mode).
		Int("items", len(items)).
		Int("batch_size", plan.BatchSize).
		Str("command", plan.Command).
		Msg("bulk run started")

	interactive := flags.output == outputText && !flags.noTUI && isTerminal(os.Stdout) && isTerminal(os.Stderr)

	started := time.Now()
	var results []bulk.Result[string]
	if interactive {
		results, err = runInteractive(ctx, cmd, run, items, op, bulkCfg, plan)
	} else {
		results, err = runPlain(ctx, cmd, run, items, op, bulkCfg, flags.output == outputText)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	summary := bulk.Summarize(results)
	failures := bulk.Failures(results)

	runLogger.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Float64("success_rate", summary.SuccessRate).
		Dur("elapsed", elapsed).
		Msg("bulk run finished")

	if store != nil && !flags.noHistory {
		recordErr := store.Record(history.Entry{
			RunID:     runID,
			Command:   plan.Command,
			Mode:      plan.Mode,
			BatchSize: plan.BatchSize,
			Summary:   summary,
			StartedAt: started,
			Duration:  elapsed,
		})
		if recordErr != nil {
			logger.Warn().Err(recordErr).Msg("failed to record run in history")
		}
	}

	switch {
	case flags.output == outputJSON:
		if renderErr := renderRunJSON(cmd.OutOrStdout(), runID, plan, items, results, summary, elapsed); renderErr != nil {
			return renderErr
		}
	case !interactive:
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummary(summary, failures, items, elapsed))
	}

	if summary.Failed > 0 && !flags.allowFailures {
		return fmt.Errorf("%w: %d of %d items failed", ErrItemsFailed, summary.Failed, summary.Total)
	}
	return nil
}

// resolvePlan layers configuration defaults, the optional preset and the
// flags that were explicitly set, in that order.
func resolvePlan(cmd *cobra.Command, args []string, flags runFlags, cfg *config.Config, store *history.Store) (runPlan, error) {
	plan := runPlan{
		Mode:      cfg.Bulk.Mode,
		BatchSize: cfg.Bulk.BatchSize,
		Delay:     cfg.Bulk.InterBatchDelay,
		Timeout:   cfg.Bulk.OperationTimeout,
		Rate:      cfg.Bulk.RatePerSecond,
	}

	if flags.preset != "" {
		if store == nil {
			return runPlan{}, fmt.Errorf("cannot load preset %q: history store unavailable", flags.preset)
		}
		preset, err := store.Preset(flags.preset)
		if err != nil {
			return runPlan{}, err
		}
		applyPreset(&plan, preset)
	}

	changed := cmd.Flags().Changed
	if changed("mode") {
		plan.Mode = flags.mode
	}
	if changed("batch-size") {
		plan.BatchSize = flags.batchSize
	}
	if changed("delay") {
		plan.Delay = flags.delay
	}
	if changed("timeout") {
		plan.Timeout = flags.timeout
	}
	if changed("rate") {
		plan.Rate = flags.rate
	}
	if len(args) > 0 {
		plan.Command = commandTemplate(args)
	}

	if plan.Command == "" {
		return runPlan{}, errors.New("no command template given (pass it after -- or use --preset)")
	}
	if plan.BatchSize < 0 {
		return runPlan{}, fmt.Errorf("%w: --batch-size must be >= 0, got %d", bulk.ErrInvalidArgument, plan.BatchSize)
	}
	if plan.Delay < 0 || plan.Timeout < 0 || plan.Rate < 0 {
		return runPlan{}, fmt.Errorf("%w: --delay, --timeout and --rate must be >= 0", bulk.ErrInvalidArgument)
	}
	return plan, nil
}

func applyPreset(plan *runPlan, preset history.Preset) {
	plan.Command = preset.Command
	if preset.Mode != "" {
		plan.Mode = preset.Mode
	}
	if preset.BatchSize != 0 {
		plan.BatchSize = preset.BatchSize
	}
	if preset.InterBatchDelay != 0 {
		plan.Delay = preset.InterBatchDelay
	}
	if preset.Timeout != 0 {
		plan.Timeout = preset.Timeout
	}
	if preset.RatePerSecond != 0 {
		plan.Rate = preset.RatePerSecond
	}
}

// commandTemplate rebuilds a template from the arguments after "--". A single
// argument is taken as an already quoted template. Words that split back to
// themselves are kept verbatim so "{}" stays readable.
func commandTemplate(args []string) string {
	if len(args) == 1 {
		return args[0]
	}

	words := make([]string, len(args))
	for i, arg := range args {
		if split, err := shellquote.Split(arg); err == nil && len(split) == 1 && split[0] == arg {
			words[i] = arg
			continue
		}
		words[i] = shellquote.Join(arg)
	}
	return strings.Join(words, " ")
}

// commandEnv returns the process environment extended with the KEY=VALUE
// pairs, or nil to inherit it unchanged.
func commandEnv(pairs []string) ([]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	for _, pair := range pairs {
		if key, _, ok := strings.Cut(pair, "="); !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q (want KEY=VALUE)", pair)
		}
	}
	return append(os.Environ(), pairs...), nil
}

func runnerFor(mode string) (runner, error) {
	switch mode {
	case config.ModeSequential:
		return bulk.RunSequential[string, string], nil
	case config.ModeParallel:
		return bulk.RunParallel[string, string], nil
	default:
		return nil, fmt.Errorf("unknown mode %q (want %s or %s)", mode, config.ModeSequential, config.ModeParallel)
	}
}

// runPlain runs without a TUI, optionally printing one line per settled item to stderr.
func runPlain(
	ctx context.Context,
	cmd *cobra.Command,
	run runner,
	items []string,
	op bulk.Operation[string, string],
	bulkCfg bulk.Config[string],
	showProgress bool,
) ([]bulk.Result[string], error) {
	if showProgress {
		errOut := cmd.ErrOrStderr()
		bulkCfg.OnProgress = func(p bulk.Progress) {
			_, _ = fmt.Fprintln(errOut, tui.ProgressLine(p))
		}
	}
	return run(ctx, items, op, bulkCfg)
}

// runOutcome carries the runner's return values out of its goroutine.
type runOutcome struct {
	results []bulk.Result[string]
	err     error
}

// runInteractive runs with the Bubble Tea progress view. Closing the view
// does not stop the run; the command still waits for every item.
func runInteractive(
	ctx context.Context,
	cmd *cobra.Command,
	run runner,
	items []string,
	op bulk.Operation[string, string],
	bulkCfg bulk.Config[string],
	plan runPlan,
) ([]bulk.Result[string], error) {
	title := fmt.Sprintf("%s run of %s items", plan.Mode, tui.FormatCount(len(items)))
	model := tui.NewRunModel(title, len(items), items)
	program := tea.NewProgram(model, tea.WithOutput(cmd.ErrOrStderr()))

	bulkCfg.OnProgress = func(p bulk.Progress) {
		program.Send(tui.ProgressMsg{Progress: p})
	}

	outcome := make(chan runOutcome, 1)
	go func() {
		started := time.Now()
		results, err := run(ctx, items, op, bulkCfg)
		outcome <- runOutcome{results: results, err: err}
		program.Send(tui.DoneMsg{
			Summary:  bulk.Summarize(results),
			Failures: bulk.Failures(results),
			Elapsed:  time.Since(started),
		})
	}()

	final, err := program.Run()
	if err != nil {
		logger.Warn().Err(err).Msg("progress view failed")
	}
	if m, ok := final.(tui.RunModel); ok && m.Detached() {
		cmd.PrintErrln("View closed; waiting for in-flight items to finish...")
	}

	o := <-outcome
	if o.err == nil && !isDone(final) {
		// The summary was not drawn by the view.
		summary := bulk.Summarize(o.results)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummary(summary, bulk.Failures(o.results), items, 0))
	}
	return o.results, o.err
}

func isDone(model tea.Model) bool {
	m, ok := model.(tui.RunModel)
	return ok && m.Done()
}

// runJSONResult is one item of the JSON output.
type runJSONResult struct {
	Item       string `json:"item"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// runJSONOutput is the JSON document printed by run --output json.
type runJSONOutput struct {
	RunID     string          `json:"run_id"`
	Command   string          `json:"command"`
	Mode      string          `json:"mode"`
	BatchSize int             `json:"batch_size"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Summary   bulk.Summary    `json:"summary"`
	Results   []runJSONResult `json:"results"`
}

func renderRunJSON(
	w io.Writer,
	runID string,
	plan runPlan,
	items []string,
	results []bulk.Result[string],
	summary bulk.Summary,
	elapsed time.Duration,
) error {
	out := runJSONOutput{
		RunID:     runID,
		Command:   plan.Command,
		Mode:      plan.Mode,
		BatchSize: plan.BatchSize,
		ElapsedMS: elapsed.Milliseconds(),
		Summary:   summary,
		Results:   make([]runJSONResult, len(results)),
	}
	for i, r := range results {
		jr := runJSONResult{
			Item:       items[i],
			Success:    r.Success,
			Output:     r.Value,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			jr.Error = r.Err.Message
		}
		out.Results[i] = jr
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("encoding run JSON: %w", err)
	}
	return nil
}

func identity(s string) string {
	return s
}
