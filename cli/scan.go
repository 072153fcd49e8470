package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lukemcguire/linkguard/config"
	"github.com/lukemcguire/linkguard/logging"
	"github.com/lukemcguire/linkguard/metrics"
	"github.com/lukemcguire/linkguard/result"
	"github.com/lukemcguire/linkguard/rules"
	"github.com/lukemcguire/linkguard/scanner"
	"github.com/lukemcguire/linkguard/tui"
	"github.com/lukemcguire/linkguard/verifier"
)

// Result orderings accepted by --sort.
const (
	SortInput      = "input"
	SortCompletion = "completion"
)

// errInterrupted is returned when the user quits the TUI before the run ends.
var errInterrupted = errors.New("scan interrupted")

type scanOptions struct {
	mode         string
	timeout      float64 // seconds
	concurrency  int
	perHostLimit int
	rateLimit    int
	export       string
	exclude      []string
	ignore       []string
	strictSSL    bool
	noTUI        bool
	verbose      bool
	logFile      string
	metricsFile  string
	sort         string
}

// NewScanCommand creates the scan subcommand.
func NewScanCommand() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Scan a directory for broken links and development URLs",
		Long: `Scan walks the directory (default: current directory), extracts URLs from
Markdown, text, HTML, JSON, YAML and JavaScript/TypeScript files, and
checks every URL.

Settings are read from linkguard.config.json or linkguard.yaml in the
directory; flags override them. Ignore patterns come from .linkguardignore,
or from .gitignore files when there is none.

Exit codes:
  0  no broken links and no violations
  1  broken links found, or the scan failed
  2  rule violations found in prod mode (takes precedence over 1)

Examples:
  linkguard scan docs/
  linkguard scan . --mode prod --export report.json
  linkguard scan . --exclude 'https://internal.example.com/*' --concurrency 20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runScan(cmd, dir, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.mode, "mode", "m", rules.ModeDev, "Scanning mode: 'dev' or 'prod' (prod flags localhost URLs)")
	flags.Float64VarP(&opts.timeout, "timeout", "t", 10, "Timeout in seconds for each HTTP request")
	flags.IntVarP(&opts.concurrency, "concurrency", "c", 50, "Maximum number of links checked at once")
	flags.IntVar(&opts.perHostLimit, "per-host-limit", 10, "Maximum number of links checked at once per host")
	flags.IntVar(&opts.rateLimit, "rate-limit", 0, "Maximum requests per second across all hosts (0 = unlimited)")
	flags.StringVarP(&opts.export, "export", "e", "", "Export results to a .json, .csv or .md file")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "URL glob to skip (repeatable)")
	flags.StringSliceVar(&opts.ignore, "ignore", nil, "File or directory glob to skip (repeatable)")
	flags.BoolVar(&opts.strictSSL, "strict-ssl", false, "Verify TLS certificates")
	flags.BoolVar(&opts.noTUI, "no-tui", false, "Disable the interactive progress view")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr (disables the progress view)")
	flags.StringVar(&opts.logFile, "log-file", "", "Write JSON logs to this file (rotated)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.StringVar(&opts.sort, "sort", SortInput, "Result order: 'input' (discovery order) or 'completion'")

	return cmd
}

// overrides collects the flags the user set explicitly.
func (o *scanOptions) overrides(cmd *cobra.Command) config.Overrides {
	changed := cmd.Flags().Changed
	var ov config.Overrides
	if changed("mode") {
		ov.Mode = &o.mode
	}
	if changed("timeout") {
		d := time.Duration(o.timeout * float64(time.Second))
		ov.Timeout = &d
	}
	if changed("concurrency") {
		ov.Concurrency = &o.concurrency
	}
	if changed("per-host-limit") {
		ov.PerHostLimit = &o.perHostLimit
	}
	if changed("rate-limit") {
		ov.RateLimit = &o.rateLimit
	}
	if changed("strict-ssl") {
		ov.StrictSSL = &o.strictSSL
	}
	if changed("log-file") {
		ov.LogFile = &o.logFile
	}
	if changed("metrics-file") {
		ov.MetricsFile = &o.metricsFile
	}
	if o.verbose {
		level := "debug"
		ov.LogLevel = &level
	}
	ov.IgnorePatterns = o.ignore
	ov.ExcludeURLs = o.exclude
	return ov
}

func runScan(cmd *cobra.Command, dir string, opts *scanOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	if opts.sort != SortInput && opts.sort != SortCompletion {
		return fmt.Errorf("invalid --sort %q, must be %q or %q", opts.sort, SortInput, SortCompletion)
	}
	if opts.export != "" {
		if _, err := result.FormatForPath(opts.export); err != nil {
			return err
		}
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Merge(opts.overrides(cmd))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Verbose: opts.verbose})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
		_, _ = fmt.Fprintf(errOut, "Warning: %s\n", w)
	}

	_, _ = fmt.Fprintf(out, "Scanning directory: %s\n", root)
	_, _ = fmt.Fprintf(out, "Mode: %s | Timeout: %s\n\n", cfg.Mode, cfg.Timeout)

	files, err := scanner.Scan(root, scanner.Options{IgnorePatterns: cfg.IgnorePatterns, Logger: log})
	if err != nil {
		return fmt.Errorf("scan files: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Found %d files to scan\n", len(files))

	records := collectRecords(root, files, cfg, log)
	_, _ = fmt.Fprintf(out, "Extracted %d URLs\n\n", len(records))
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No URLs found to check.")
		return nil
	}

	checker, err := rules.New(cfg.Mode)
	if err != nil {
		return err
	}
	violations := checker.CheckAll(records)

	var observer *metrics.Metrics
	vcfg := verifierConfig(cfg, log)
	if cfg.MetricsFile != "" {
		observer = metrics.New()
		vcfg.Metrics = observer
	}
	v, err := verifier.New(vcfg)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	scanInfo := result.ScanInfo{
		Directory:    root,
		Mode:         cfg.Mode,
		Timeout:      cfg.Timeout,
		Concurrency:  cfg.Concurrency,
		PerHostLimit: cfg.PerHostLimit,
		FilesScanned: len(files),
	}
	assemble := func(links []result.LinkResult, elapsed time.Duration) *result.Result {
		if opts.sort == SortInput {
			result.SortByIndex(links)
		}
		return result.New(uuid.NewString(), links, violations, scanInfo, elapsed)
	}

	var res *result.Result
	if useTUI(opts, out) {
		res, err = verifyWithTUI(ctx, v, records, assemble)
		if err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(out, "Checking %d links...\n\n", len(records))
		start := time.Now()
		links := v.Verify(ctx, records, nil)
		res = assemble(links, time.Since(start))
		result.PrintResults(out, res)
	}

	log.Info("scan finished",
		zap.String("run_id", res.RunID),
		zap.Int("checked", res.Stats.TotalChecked),
		zap.Int("broken", res.Stats.BrokenCount),
		zap.Int("violations", res.Stats.Violations),
		zap.Duration("duration", res.Stats.Duration),
	)

	if opts.export != "" {
		if err := result.Export(opts.export, res); err != nil {
			log.Error("export failed", zap.String("path", opts.export), zap.Error(err))
			_, _ = fmt.Fprintf(errOut, "Failed to export results: %v\n", err)
		} else {
			_, _ = fmt.Fprintf(out, "Results exported to %s\n", opts.export)
		}
	}
	if observer != nil {
		if err := observer.WriteFile(cfg.MetricsFile); err != nil {
			log.Error("metrics export failed", zap.Error(err))
			_, _ = fmt.Fprintf(errOut, "Failed to write metrics: %v\n", err)
		}
	}

	if code := exitCode(res, cfg.Mode); code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

func verifierConfig(cfg *config.Config, log *zap.Logger) verifier.Config {
	vcfg := verifier.DefaultConfig()
	vcfg.MaxConcurrent = cfg.Concurrency
	vcfg.PerHostLimit = cfg.PerHostLimit
	vcfg.Timeout = cfg.Timeout
	vcfg.RateLimit = cfg.RateLimit
	vcfg.StrictTLS = cfg.StrictSSL
	if cfg.UserAgent != "" {
		vcfg.UserAgent = cfg.UserAgent
	}
	vcfg.Logger = log
	return vcfg
}

// useTUI reports whether the interactive view can own the terminal.
func useTUI(opts *scanOptions, out io.Writer) bool {
	if opts.noTUI || opts.verbose {
		return false
	}
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func verifyWithTUI(
	ctx context.Context,
	v *verifier.Verifier,
	records []verifier.LinkRecord,
	assemble func([]result.LinkResult, time.Duration) *result.Result,
) (*result.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progressCh := make(chan verifier.Progress, 100)
	run := func(ctx context.Context) (*result.Result, error) {
		defer close(progressCh)
		start := time.Now()
		links := v.Verify(ctx, records, func(p verifier.Progress) {
			select {
			case progressCh <- p:
			case <-ctx.Done():
			}
		})
		return assemble(links, time.Since(start)), nil
	}

	model := tui.NewModel(ctx, cancel, run, progressCh, len(records))
	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("run progress view: %w", err)
	}

	final := finalModel.(tui.Model)
	if final.Err() != nil {
		return nil, final.Err()
	}
	if final.GetResult() == nil {
		return nil, errInterrupted
	}
	return final.GetResult(), nil
}

// exitCode maps a finished run to the process exit code. Violations in prod
// mode win over broken links.
func exitCode(res *result.Result, mode string) int {
	switch {
	case mode == rules.ModeProd && res.Stats.Violations > 0:
		return ExitViolations
	case res.Stats.BrokenCount > 0:
		return ExitBroken
	default:
		return ExitOK
	}
}
