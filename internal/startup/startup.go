package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	// Filesystem boundary
	UploadRoot    string        `env:"UPLOAD_ROOT" envDefault:"/data"`
	ThumbnailDir  string        `env:"THUMBNAIL_DIR"`
	ThumbnailSize int           `env:"THUMBNAIL_SIZE" envDefault:"256"`
	DatabaseDir   string        `env:"DATABASE_DIR" envDefault:"/database"`
	ItemDelay     time.Duration `env:"ITEM_DELAY" envDefault:"500ms"`

	// Extractors
	DeepModelCommand      string  `env:"DEEP_MODEL_COMMAND"`
	ForceCPU              bool    `env:"FORCE_CPU" envDefault:"true"`
	FFmpegPath            string  `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath           string  `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	AudioMaxSeconds       int     `env:"AUDIO_MAX_SECONDS" envDefault:"60"`
	VideoKeyframeInterval float64 `env:"VIDEO_KEYFRAME_INTERVAL" envDefault:"1"`
	VideoMaxKeyframes     int     `env:"VIDEO_MAX_KEYFRAMES" envDefault:"120"`

	// Metrics
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"false"`
	MetricsPort    string `env:"METRICS_PORT" envDefault:"9090"`

	// Log file (stderr is always written)
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	// Memory
	MemoryLimit int64   `env:"MEMORY_LIMIT"`
	MemoryRatio float64 `env:"MEMORY_RATIO" envDefault:"0.75"`

	// Derived paths
	DatabasePath string

	// Feature flags based on directory availability
	ThumbnailsEnabled bool
}

// Parse reads the configuration from the process environment and validates
// it. Directories are not touched; see LoadConfig.
func Parse() (*Config, error) {
	return parse(env.Options{})
}

// ParseEnvironment is Parse over an explicit set of variables.
func ParseEnvironment(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize validates values, resolves paths to absolute form and fills in
// derived settings.
func (c *Config) normalize() error {
	var errs []error
	if c.ThumbnailSize <= 0 {
		errs = append(errs, fmt.Errorf("THUMBNAIL_SIZE must be positive, got %d", c.ThumbnailSize))
	}
	if c.ItemDelay < 0 {
		errs = append(errs, fmt.Errorf("ITEM_DELAY must not be negative, got %v", c.ItemDelay))
	}
	if c.VideoKeyframeInterval <= 0 {
		errs = append(errs, fmt.Errorf("VIDEO_KEYFRAME_INTERVAL must be positive, got %v", c.VideoKeyframeInterval))
	}
	if c.VideoMaxKeyframes <= 0 {
		errs = append(errs, fmt.Errorf("VIDEO_MAX_KEYFRAMES must be positive, got %d", c.VideoMaxKeyframes))
	}
	if c.MetricsEnabled {
		if port, err := strconv.Atoi(c.MetricsPort); err != nil || port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("METRICS_PORT must be a port number, got %q", c.MetricsPort))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var err error
	if c.UploadRoot, err = filepath.Abs(c.UploadRoot); err != nil {
		return fmt.Errorf("failed to resolve upload root path: %w", err)
	}
	if c.ThumbnailDir == "" {
		c.ThumbnailDir = filepath.Join(c.UploadRoot, "thumbnails")
	}
	if c.ThumbnailDir, err = filepath.Abs(c.ThumbnailDir); err != nil {
		return fmt.Errorf("failed to resolve thumbnail directory path: %w", err)
	}
	if c.DatabaseDir, err = filepath.Abs(c.DatabaseDir); err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	c.DatabasePath = filepath.Join(c.DatabaseDir, "media.db")
	return nil
}

// LogFileOptions returns the rotating log file settings.
func (c *Config) LogFileOptions() logging.FileOptions {
	return logging.FileOptions{
		Path:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   true,
	}
}

// LoadConfig prints the startup banner, parses the configuration and
// prepares the database and thumbnail directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := Parse()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  UPLOAD_ROOT:             %s", config.UploadRoot)
	logging.Info("  THUMBNAIL_DIR:           %s", config.ThumbnailDir)
	logging.Info("  THUMBNAIL_SIZE:          %d", config.ThumbnailSize)
	logging.Info("  DATABASE_DIR:            %s", config.DatabaseDir)
	logging.Info("  ITEM_DELAY:              %v", config.ItemDelay)
	logging.Info("  DEEP_MODEL_COMMAND:      %s", valueOrNone(config.DeepModelCommand))
	logging.Info("  FORCE_CPU:               %v", config.ForceCPU)
	logging.Info("  AUDIO_MAX_SECONDS:       %d", config.AudioMaxSeconds)
	logging.Info("  VIDEO_KEYFRAME_INTERVAL: %v", config.VideoKeyframeInterval)
	logging.Info("  VIDEO_MAX_KEYFRAMES:     %d", config.VideoMaxKeyframes)
	logging.Info("  METRICS_ENABLED:         %v", config.MetricsEnabled)
	logging.Info("  METRICS_PORT:            %s", config.MetricsPort)
	logging.Info("  LOG_FILE:                %s", valueOrNone(config.LogFile))
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	// The upload root is mounted, never created.
	if err := ensureDirectory(config.UploadRoot, "upload", false); err != nil {
		logging.Warn("  Upload root issue: %v", err)
	}

	if err := ensureDirectory(config.DatabaseDir, "database", true); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config.ThumbnailsEnabled = setupOptionalDir(config.ThumbnailDir, "thumbnails")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:      ENABLED (required)")
	logging.Info("    Thumbnails:    %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Deep features: %s", enabledString(config.DeepModelCommand != ""))
	logging.Info("    Metrics:       %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogExtractorInit logs which extraction backends are usable.
func LogExtractorInit(config *Config, vipsEnabled bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTRACTOR INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if vipsEnabled {
		logging.Info("  [OK] Thumbnails rendered with libvips")
	} else {
		logging.Info("  Thumbnails rendered with the pure Go imaging backend")
	}

	if err := checkFFmpeg(config.FFmpegPath); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Audio and video items will be skipped until FFmpeg is installed")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}

	if config.DeepModelCommand == "" {
		logging.Info("  Deep model not configured (set DEEP_MODEL_COMMAND to enable backfill)")
	}
}

// LogMemoryConfig logs the outcome of memory.Configure.
func LogMemoryConfig(result memory.ConfigResult) {
	if !result.Configured {
		logging.Debug("  Memory limit: not configured")
		return
	}
	logging.Info("  Memory limit:  %s (source: %s)", memory.FormatBytes(result.GoMemLimit), result.Source)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes, err
}

// LogMetricsServer logs the metrics endpoint and, at debug level, its routes.
func LogMetricsServer(router *mux.Router, port string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("METRICS SERVER")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Metrics:       http://0.0.0.0:%s/metrics", port)

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
	logging.Info("  Finishing the current item before stopping")
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                   _ _                    _            _ _
  _ __ ___   ___  __| (_) __ _       _ __ (_)_ __   ___| (_)_ __   ___
 | '_ ' _ \ / _ \/ _' | |/ _' |_____| '_ \| | '_ \ / _ \ | | '_ \ / _ \
 | | | | | |  __/ (_| | | (_| |_____| |_) | | |_) |  __/ | | | | |  __/
 |_| |_| |_|\___|\__,_|_|\__,_|     | .__/|_| .__/ \___|_|_|_| |_|\___|
                                    |_|     |_|
------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string, create bool) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if !create {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg(path string) error {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", path)
	}
	logging.Debug("  FFmpeg path: %s", resolved)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, resolved, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(line))
	}
	return nil
}
