package main

import (
	"context"
	"errors"
	"flag"
	"github.com/Avi18971911/augur-go/internal/example/repository"
	"github.com/Avi18971911/augur-go/internal/example/router"
	"github.com/Avi18971911/augur-go/internal/example/service"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/config"
	"github.com/Avi18971911/augur-go/pkg/integrations/captureconsole"
	"github.com/Avi18971911/augur-go/pkg/integrations/dedupe"
	"github.com/Avi18971911/augur-go/pkg/integrations/httpserver"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"net/http"
	"os"
	"time"
)

const (
	serviceName     = "fake-service"
	dedupeWindow    = time.Minute
	shutdownTimeout = 5 * time.Second
)

func initLogger() *logrus.Logger {
	log := logrus.New()
	log.Level = logrus.DebugLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
	return log
}

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := initLogger()
	zapLogger, err := zap.NewProduction()
	if err != nil {
		logger.Fatalf("Failed to create zap logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	ctx := context.Background()
	t, err := cfg.NewTransport(ctx, serviceName, zapLogger)
	if err != nil {
		logger.Fatalf("Failed to create transport: %v", err)
	}

	consoleCapture := captureconsole.New(captureconsole.Options{
		Levels: []string{captureconsole.LevelWarn, captureconsole.LevelError},
	})
	dedupeIntegration, err := dedupe.New(dedupeWindow)
	if err != nil {
		logger.Fatalf("Failed to create dedupe integration: %v", err)
	}
	options := cfg.ClientOptions(t, zapLogger)
	options.Integrations = []augur.Integration{consoleCapture, dedupeIntegration}
	client, err := augur.Init(options)
	if err != nil {
		logger.Fatalf("Failed to initialize augur: %v", err)
	}
	stop := client.InstallShutdownHook(ctx)
	defer stop()
	logger.AddHook(consoleCapture.LogrusHook(ctx))

	ar := repository.CreateNewFakeAccountRepository()
	as := service.CreateNewAccountServiceImpl(ar, zapLogger)
	r := router.CreateRouter(as, httpserver.New(httpserver.Options{}), logger)

	logger.Infof("Starting webserver on %s", *addr)
	err = http.ListenAndServe(*addr, r)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		augur.CaptureException(ctx, err, nil)
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	client.Close(closeCtx)
	logger.Fatalf("Stopped Listening to Webserver! %v", err)
}
