package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/dispatcher"
	"github.com/OCAP2/featurex/internal/logging"
	"github.com/OCAP2/featurex/internal/monitor"
	intOtel "github.com/OCAP2/featurex/internal/otel"
	"github.com/OCAP2/featurex/internal/storage"
	"github.com/OCAP2/featurex/internal/worker"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "featurex"
)

var (
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	LogFilePath      string
	LogFile          *os.File
	SessionStartTime = time.Now()
)

// configDir returns the directory holding featurex.cfg.json.
func configDir() string {
	if dir := os.Getenv("FEATUREX_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, viper.GetString("logLevel"), logging.Options{})
	Logger = SlogManager.Logger()

	if err := config.Load(configDir()); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}
	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	opts := logging.Options{Format: viper.GetString("logFormat")}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address, AppName)
		if err != nil {
			Logger.Error("Failed to connect GELF writer", "error", err, "address", gl.Address)
		} else {
			opts.GELF = w
		}
	}

	var file io.Writer
	if LogFile != nil {
		file = LogFile
	}
	SlogManager.Setup(file, viper.GetString("logLevel"), opts)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion, "build", BuildDate)
}

func setupOTel() {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return
	}
	var w io.Writer = os.Stderr
	if LogFile != nil {
		w = LogFile
	}
	p, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ExportInterval: otelCfg.ExportInterval,
		MetricWriter:   w,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		return
	}
	OTelProvider = p
	Logger.Info("OTel provider initialized", "interval", otelCfg.ExportInterval)
}

// dispatcherLogger picks the zerolog adapter for JSON console output.
func dispatcherLogger(ctx context.Context) dispatcher.Logger {
	if strings.EqualFold(viper.GetString("logFormat"), "json") {
		zl := zerolog.New(os.Stderr).With().Timestamp().Str("app", AppName).Logger().
			Level(zerologLevel(viper.GetString("logLevel")))
		return logging.NewZerologLogger(zl)
	}
	return logging.NewSlogLogger(ctx, Logger)
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func shutdown() {
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if err := SlogManager.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log outputs: %v\n", err)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	setupLogging()
	setupOTel()
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(nil)
		return 0
	}
	command := strings.ToLower(args[0])

	features, err := config.LoadFeatureConfig(viper.GetString("featureConfig"))
	if err != nil {
		Logger.Error("Failed to load feature config", "error", err, "path", viper.GetString("featureConfig"))
		return 1
	}

	var backend storage.Backend
	if command == worker.CommandExtract {
		backend, err = initStorage(features)
		if err != nil {
			Logger.Error("Failed to initialize storage backend", "error", err)
			return 1
		}
		defer func() {
			if err := backend.Close(); err != nil {
				Logger.Error("Failed to close storage backend", "error", err)
			}
		}()
	}

	workerCfg := config.GetWorkerConfig()
	manager, err := worker.NewManager(worker.Dependencies{
		Features: features,
		Logger:   Logger,
		Parallel: workerCfg.Parallel,
		FailFast: workerCfg.FailFast,
	}, backend)
	if err != nil {
		Logger.Error("Failed to create worker manager", "error", err)
		return 1
	}

	d, err := dispatcher.New(dispatcherLogger(ctx))
	if err != nil {
		Logger.Error("Failed to create dispatcher", "error", err)
		return 1
	}
	manager.RegisterHandlers(d)

	if command == worker.CommandExtract {
		monCfg := config.GetMonitorConfig()
		mon := monitor.NewService(monitor.Dependencies{
			Source:     manager,
			Logger:     Logger,
			StatusPath: monCfg.StatusFile,
			Interval:   monCfg.Interval,
		})
		if err := mon.Start(); err != nil {
			Logger.Warn("Failed to start status monitor", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	result, err := d.Dispatch(ctx, dispatcher.Event{Command: command, Args: args[1:]})
	if result != nil {
		printResult(result)
	}
	if errors.Is(err, dispatcher.ErrUnknownCommand) {
		printUsage(d)
		return 2
	}
	if err != nil {
		Logger.Error("Command failed", "command", command, "error", err)
		return 1
	}

	if command == worker.CommandExtract && config.GetStorageConfig().Type == storage.TypeMemory {
		out := filepath.Join(viper.GetString("storage.memory.outputDir"), filepath.Base(viper.GetString("featureConfig")))
		if err := features.Save(out); err != nil {
			Logger.Warn("Failed to save feature config next to outputs", "error", err, "path", out)
		}
	}
	return 0
}

func initStorage(features *config.FeatureConfig) (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()
	runConfig, err := os.ReadFile(viper.GetString("featureConfig"))
	if err != nil {
		return nil, fmt.Errorf("reading feature config: %w", err)
	}
	backend, err := storage.NewBackend(storageCfg, Logger, runConfig)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, err
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type, "extractors", len(features.Pipeline.Friendly)+len(features.Pipeline.Enemy))
	return backend, nil
}

func printResult(result any) {
	switch r := result.(type) {
	case worker.Summary:
		fmt.Printf("processed %d, skipped %d, failed %d, rows %d\n", r.Processed, r.Skipped, r.Failed, r.Rows)
		for _, res := range r.Results {
			if res.Err != nil {
				fmt.Printf("  %s: %v\n", res.Path, res.Err)
			}
		}
	default:
		fmt.Println(r)
	}
}

func printUsage(d *dispatcher.Dispatcher) {
	fmt.Printf("%s %s (%s)\n\nUsage: %s <command> [args]\n\n", AppName, CurrentVersion, BuildDate, AppName)
	if d == nil {
		fmt.Println("Commands: extract, describe, validate, merge")
		return
	}
	fmt.Println("Commands:")
	for _, c := range d.Commands() {
		fmt.Printf("  %-10s %s\n", c.Name, c.Summary)
	}
}
