package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"stepviz/internal/backend"
	"stepviz/internal/config"
	"stepviz/internal/interp"
	"stepviz/internal/logging"
	"stepviz/internal/model"
	"stepviz/internal/telemetry"
	"stepviz/internal/trace"
	"stepviz/internal/tui"
	"stepviz/internal/watch"
	"stepviz/internal/web"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
)

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "stepviz",
		Repository: "stepviz",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Println("👉 Download it from https://github.com/stepviz/stepviz/releases")
	} else if pflag.Lookup("update").Changed {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

// app bundles what every mode needs.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	analyzer *trace.Analyzer
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stepviz [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "stepviz runs a small C++ or Python program and records every line it\n")
		fmt.Fprintf(os.Stderr, "executes, with the call stack, heap and output at each step.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stepviz fact.py              # Step through in the TUI\n")
		fmt.Fprintf(os.Stderr, "  stepviz --json main.cpp      # Print the trace as JSON\n")
		fmt.Fprintf(os.Stderr, "  stepviz -r -o r.txt fact.py  # Save a text report\n")
		fmt.Fprintf(os.Stderr, "  stepviz --run --stdin in.txt main.cpp\n")
		fmt.Fprintf(os.Stderr, "  stepviz --web                # Start the web visualizer\n")
	}

	langFlag := pflag.StringP("lang", "l", "", "Source language: cpp or python (default: from file extension)")
	stdinFlag := pflag.String("stdin", "", "File whose contents are fed to the program's stdin")
	runFlag := pflag.Bool("run", false, "Run the program without tracing and print its output")
	jsonFlag := pflag.BoolP("json", "j", false, "Output the trace as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print a plain-text trace report")
	outputFlag := pflag.StringP("output", "o", "", "Save report to the specified file (combined with --report)")
	verboseFlag := pflag.BoolP("verbose", "v", false, "Include frames, variables, heap and flowchart in the report")
	webFlag := pflag.BoolP("web", "w", false, "Start Web Mode")
	addrFlag := pflag.String("addr", "", "Listen address for --web (default from config, :8080)")
	watchFlag := pflag.Bool("watch", false, "Re-trace whenever the file changes")
	configFlag := pflag.String("config", "", "Config file (default ~/.stepviz/config.yaml if present)")
	logLevelFlag := pflag.String("log-level", "", "Log level: debug, info, warn, error")
	otelFlag := pflag.Bool("otel-stdout", false, "Export OpenTelemetry spans to stderr")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("stepviz version %s\n", model.Version)
		return
	}

	if *updateFlag {
		checkUpdate(model.Version)
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatal(err)
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	tuiMode := !*webFlag && !*runFlag && !*jsonFlag && !*reportFlag && isTTY

	a, cleanup, err := newApp(ctx, cfg, tuiMode, *otelFlag)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	if *webFlag {
		a.runWebMode(ctx)
		return
	}

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	path := pflag.Arg(0)
	lang, err := resolveLanguage(*langFlag, path)
	if err != nil {
		fatal(err)
	}
	stdin := ""
	if *stdinFlag != "" {
		stdin, err = model.ReadSource(*stdinFlag)
		if err != nil {
			fatal(err)
		}
	}

	switch {
	case *runFlag:
		a.runPlainMode(ctx, path, lang, stdin)
	case *reportFlag:
		a.each(ctx, path, *watchFlag, func(source string) {
			a.runReportMode(ctx, source, lang, stdin, *outputFlag, *verboseFlag)
		})
	case *jsonFlag || !isTTY:
		a.each(ctx, path, *watchFlag, func(source string) {
			a.runJsonMode(ctx, source, lang, stdin)
		})
	default:
		a.runTuiMode(ctx, path, lang, stdin, *watchFlag)
	}
}

func newApp(ctx context.Context, cfg config.Config, quiet, otelStdout bool) (*app, func(), error) {
	logger, err := logging.New(logging.Config{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		File:  cfg.Log.File,
		Quiet: quiet,
	})
	if err != nil {
		return nil, nil, err
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "stepviz",
		ServiceVersion: model.Version,
		Stdout:         otelStdout,
		Writer:         os.Stderr,
	})
	if err != nil {
		logger.Close()
		return nil, nil, err
	}

	b, err := backend.New(cfg.Backend, logger.Logger)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	py := interp.NewPython(cfg.Python.Binary, logger.Logger)
	analyzer := trace.NewAnalyzer(b, py,
		trace.WithLogger(logger.Logger),
		trace.WithStepLimit(cfg.Trace.StepLimit),
	)

	cleanup := func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
		logger.Close()
	}
	return &app{cfg: cfg, logger: logger, analyzer: analyzer}, cleanup, nil
}

func resolveLanguage(flag, path string) (model.Language, error) {
	if flag != "" {
		return model.ParseLanguage(flag)
	}
	return model.DetectLanguage(path)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// each calls fn with the file's contents, then again after every change when
// watching.
func (a *app) each(ctx context.Context, path string, watching bool, fn func(source string)) {
	source, err := model.ReadSource(path)
	if err != nil {
		fatal(err)
	}
	fn(source)
	if !watching {
		return
	}

	w, err := watch.NewFile(path, watch.DefaultDebounce, a.logger.Logger)
	if err != nil {
		fatal(err)
	}
	defer w.Close()
	err = w.Run(ctx, func() {
		source, err := model.ReadSource(path)
		if err != nil {
			a.logger.Warn("reread failed", "error", err)
			return
		}
		fn(source)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

func (a *app) runWebMode(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	srv, err := web.NewServer(a.analyzer, a.logger.Logger)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Starting stepviz web server on %s\n", a.cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx, a.cfg.Server.Addr); err != nil {
		fatal(err)
	}
}

func (a *app) runPlainMode(ctx context.Context, path string, lang model.Language, stdin string) {
	source, err := model.ReadSource(path)
	if err != nil {
		fatal(err)
	}
	res, err := a.analyzer.Run(ctx, source, lang, stdin)
	fmt.Print(res.Output)
	if err != nil || !res.Success {
		os.Exit(1)
	}
}

func (a *app) runReportMode(ctx context.Context, source string, lang model.Language, stdin, outputFile string, verbose bool) {
	resp := a.analyzer.AnalyzeLocally(ctx, source, lang, stdin)
	report := trace.GenerateReport(resp, verbose)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(report), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report to %s: %v\n", outputFile, err)
			os.Exit(1)
		}
		fmt.Printf("Report saved to %s\n", outputFile)
		return
	}
	fmt.Println(report)
}

func (a *app) runJsonMode(ctx context.Context, source string, lang model.Language, stdin string) {
	resp := a.analyzer.AnalyzeLocally(ctx, source, lang, stdin)
	writeJSON(os.Stdout, resp)
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}

func (a *app) runTuiMode(ctx context.Context, path string, lang model.Language, stdin string, watching bool) {
	source, err := model.ReadSource(path)
	if err != nil {
		fatal(err)
	}
	analyze := func(ctx context.Context, src string) model.SimulationResponse {
		return a.analyzer.AnalyzeLocally(ctx, src, lang, stdin)
	}

	m := tui.InitialModel(filepath.Base(path), source, analyze)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if watching {
		w, err := watch.NewFile(path, watch.DefaultDebounce, a.logger.Logger)
		if err != nil {
			fatal(err)
		}
		defer w.Close()
		go func() {
			_ = w.Run(ctx, func() {
				if src, err := model.ReadSource(path); err == nil {
					p.Send(tui.MsgSourceChanged{Source: src})
				}
			})
		}()
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
