package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/CelestinFernandes/geo-pot/internal/app"
	"github.com/CelestinFernandes/geo-pot/internal/config"
	"github.com/CelestinFernandes/geo-pot/internal/logging"
	intOtel "github.com/CelestinFernandes/geo-pot/internal/otel"
	"github.com/CelestinFernandes/geo-pot/internal/session"
	"github.com/CelestinFernandes/geo-pot/pkg/streaming"
)

// module defs - set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "geopot"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	configDir := flags.String("config-dir", ".", "directory holding "+config.ConfigFileName+" and an optional .env")
	logLevel := flags.String("log-level", "", "log level (debug, info, warn, error); overrides logLevel")
	startLive := flags.Bool("live", false, "start the camera and live sampling on launch")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Printf("%s %s (%s)\n", AppName, Version, BuildDate)
		return 0
	}

	sess := session.NewContext()

	// console logging until the log file is known
	logs := logging.NewSlogManager()
	logs.Setup(nil, "info", nil)
	logger := logs.Logger()

	if err := config.Load(*configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", *configDir)
	}
	if *logLevel != "" {
		viper.Set("logLevel", *logLevel)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}
	logPath := logging.LogFilePath(logsDir, AppName, sess.StartedAt())
	logFile := logging.NewFileWriter(logPath)
	defer logFile.Close()
	logger.Info("Begin logging in logs directory", "path", logPath)

	otelCfg := config.GetOTelConfig()
	otelProvider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
		SessionID:    sess.ID(),
	})
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		otelProvider = nil
	}

	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	logs.SetContextProvider(sess.LogAttrs)
	logs.Setup(logFile, viper.GetString("logLevel"), otelLogProvider)
	logger = logs.Logger()
	logger.Info("Starting", "version", Version, "build", BuildDate, "session", sess.ID())

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logs.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "log flush: %v\n", err)
		}
		if otelProvider != nil {
			if err := otelProvider.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{
		Version:    Version,
		Session:    sess,
		LogManager: logs,
		BackupDir:  logsDir,
	})
	if err != nil {
		logger.Error("Failed to start pipeline", "error", err)
		return 1
	}
	defer a.Close()

	if *startLive {
		for _, cmd := range []string{streaming.CmdCameraStart, streaming.CmdLiveStart} {
			if _, err := a.Dispatch(cmd); err != nil {
				logger.Error("Startup command failed", "command", cmd, "error", err)
			}
		}
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("Pipeline stopped with error", "error", err)
		return 1
	}
	logger.Info("Shutting down")
	return 0
}
