package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-pipeline/internal/database"
	"media-pipeline/internal/extract"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/memory"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/pipeline"
	"media-pipeline/internal/startup"
)

const (
	// Interval between media state count refreshes while a pass runs
	collectInterval = 30 * time.Second
	// Grace period for the metrics server on shutdown
	shutdownTimeout = 5 * time.Second
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return exitUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "process", "backfill", "reconcile":
		return runPass(command, rest)
	case "list", "verify", "reset":
		return runTool(command, rest)
	case "version":
		printVersion(os.Stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command)) //nolint:gosec // G705 - sanitized via allowlist
		printUsage(os.Stderr)
		return exitUsage
	}
}

// idList collects repeated -id flags.
type idList []int64

func (l *idList) String() string {
	parts := make([]string, len(*l))
	for i, id := range *l {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func (l *idList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid media id %q", part)
		}
		*l = append(*l, id)
	}
	return nil
}

// parsePassFlags parses the flags of the pass commands. Only backfill takes
// any.
func parsePassFlags(command string, args []string, output io.Writer) (pipeline.BackfillOptions, error) {
	var opts pipeline.BackfillOptions
	var ids idList

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(output)
	if command == "backfill" {
		fs.Var(&ids, "id", "media id to backfill (repeatable, or comma separated)")
		fs.BoolVar(&opts.MissingOnly, "missing-only", false, "skip images that already have deep features")
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	opts.MediaIDs = []int64(ids)
	return opts, nil
}

func runPass(command string, args []string) int {
	opts, err := parsePassFlags(command, args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	logging.EnableFileOutput(config.LogFileOptions())
	defer func() {
		if err := logging.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()

	startup.LogMemoryConfig(memory.Configure(config.MemoryLimit, config.MemoryRatio))
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		filesystem.VolumeUploads:    config.UploadRoot,
		filesystem.VolumeThumbnails: config.ThumbnailDir,
		filesystem.VolumeDatabase:   config.DatabaseDir,
	}))

	ctx, stop := signalContext(context.Background())
	defer stop()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer closeDatabase(db)
	startup.LogDatabaseInit(time.Since(dbStart))

	extract.InitVips()
	defer extract.ShutdownVips()
	startup.LogExtractorInit(config, extract.VipsEnabled())

	registry := extract.DefaultRegistry(extract.Config{
		FFmpegPath:            config.FFmpegPath,
		FFprobePath:           config.FFprobePath,
		DeepModelCommand:      config.DeepModelCommand,
		AudioMaxSeconds:       config.AudioMaxSeconds,
		VideoKeyframeInterval: config.VideoKeyframeInterval,
		VideoMaxKeyframes:     config.VideoMaxKeyframes,
	})

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

		collector := metrics.NewCollector(db, collectInterval)
		collector.Start()
		defer collector.Stop()

		srv := startMetricsServer(config.MetricsPort)
		defer shutdownMetricsServer(srv)
	}

	thumbnailDir := config.ThumbnailDir
	if !config.ThumbnailsEnabled && command == "process" {
		logging.Warn("Thumbnail directory unavailable, thumbnails will not be generated")
		thumbnailDir = ""
	}

	p := pipeline.New(db, registry, pipeline.Config{
		UploadRoot:    config.UploadRoot,
		ThumbnailDir:  thumbnailDir,
		ThumbnailSize: config.ThumbnailSize,
		ItemDelay:     config.ItemDelay,
		ForceCPU:      config.ForceCPU,
	}, monitor)

	logging.Info("")
	logging.Info("Startup completed in %v", time.Since(startTime))
	logging.Info("")

	var report *pipeline.Report
	switch command {
	case "process":
		report, err = p.RunBaseline(ctx)
	case "backfill":
		report, err = p.RunBackfill(ctx, opts)
	case "reconcile":
		report, err = p.RunReconcile(ctx)
	}

	if report != nil {
		printReport(os.Stdout, report)
	}
	return passExitCode(command, report, err)
}

// passExitCode maps the outcome of a pass to the process exit code. An
// interrupt is not an error; a baseline run with failed items is.
func passExitCode(command string, report *pipeline.Report, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		startup.LogShutdownComplete()
		return exitOK
	case err != nil:
		logging.Error("%s pass failed: %v", command, err)
		return exitError
	case command == "process" && report != nil && report.Failed > 0:
		return exitError
	default:
		return exitOK
	}
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
// The pass in progress stops before its next item.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			startup.LogShutdownInitiated(sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func startMetricsServer(port string) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet).Name("health")

	startup.LogMetricsServer(router, port)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Metrics server shutdown: %v", err)
	}
}

func closeDatabase(db *database.Database) {
	if err := db.Close(); err != nil {
		logging.Warn("failed to close database: %v", err)
	}
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "%s run %s finished in %v\n", r.Pass, r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  total: %d  succeeded: %d  failed: %d  skipped: %d\n", r.Total, r.Succeeded, r.Failed, r.Skipped)
	if r.Pass == pipeline.PassReconcile {
		fmt.Fprintf(w, "  unmatched: %d  ambiguous: %d\n", r.Unmatched, r.Ambiguous)
	}
	if r.Interrupted {
		fmt.Fprintln(w, "  interrupted before all items were processed")
	}
	for _, item := range r.Items {
		if item.Outcome == pipeline.OutcomeFailed {
			fmt.Fprintf(w, "  FAILED %s: %s\n", item.Name, item.Reason)
		}
	}
}

func printVersion(w io.Writer) {
	info := startup.GetBuildInfo()
	fmt.Fprintf(w, "mediaproc %s (commit %s, built %s, %s %s/%s)\n",
		info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen, or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Pipeline")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: mediaproc <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Passes:")
	fmt.Fprintln(w, "  process                         - Extract baseline features for unprocessed media")
	fmt.Fprintln(w, "  backfill [-id N]... [-missing-only]")
	fmt.Fprintln(w, "                                  - Add deep features to processed images")
	fmt.Fprintln(w, "  reconcile                       - Record thumbnail files missing from the database")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Tools:")
	fmt.Fprintln(w, "  list                            - Show media rows, file presence and thumbnails")
	fmt.Fprintln(w, "  verify [-id N]...               - Check deep and combined features of processed images")
	fmt.Fprintln(w, "  reset -id N [-yes]              - Return an item to the unprocessed state")
	fmt.Fprintln(w, "  version                         - Print build information")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Configuration is read from the environment (UPLOAD_ROOT, DATABASE_DIR, ...).")
}
