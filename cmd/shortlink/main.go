package main

import (
	"fmt"
	"os"

	"go-shortlink/internal/analytics/pipeline"
	"go-shortlink/internal/conf"
	"go-shortlink/internal/logging"
	"go-shortlink/internal/server"
	"go-shortlink/internal/webhook"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "shortlink"
	// Version is the version of the compiled software.
	Version = "dev"

	id, _ = os.Hostname()
)

// notifiers are the sinks both processes run. They are stopped after the
// producers feeding them, the collector last.
func notifiers(producers []transport.Server, d *webhook.Dispatcher, i *webhook.IntegrationDispatcher, collector *webhook.CollectorTarget) []transport.Server {
	sinks := []transport.Server{d, i}
	if collector != nil {
		sinks = append(sinks, collector)
	}
	return server.NewStaged(producers, sinks...)
}

func newApp(logger *zap.Logger, servers ...transport.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logging.NewKratosAdapter(logger)),
		kratos.Server(servers...),
	)
}

func newServeApp(
	logger *zap.Logger,
	hs *http.Server,
	worker *pipeline.Worker,
	wc conf.Worker,
	dispatcher *webhook.Dispatcher,
	integrations *webhook.IntegrationDispatcher,
	collector *webhook.CollectorTarget,
) *kratos.App {
	// redirects emit too, through the inline click fallback
	producers := []transport.Server{hs}
	if wc.Inline {
		producers = append(producers, worker)
	}
	return newApp(logger, notifiers(producers, dispatcher, integrations, collector)...)
}

func newWorkerApp(
	logger *zap.Logger,
	worker *pipeline.Worker,
	dispatcher *webhook.Dispatcher,
	integrations *webhook.IntegrationDispatcher,
	collector *webhook.CollectorTarget,
) *kratos.App {
	return newApp(logger, notifiers([]transport.Server{worker}, dispatcher, integrations, collector)...)
}

type injector func(*conf.Bootstrap, *zap.Logger) (*kratos.App, func(), error)

func run(confPath string, inject injector) error {
	bc, err := conf.Load(confPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(bc.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.With(
		zap.String("service.id", id),
		zap.String("service.name", Name),
		zap.String("service.version", Version),
	)

	app, cleanup, err := inject(bc, logger)
	if err != nil {
		logger.Error("failed to build application", zap.Error(err))
		return err
	}
	defer cleanup()

	// start and wait for stop signal
	return app.Run()
}

func main() {
	var confPath string
	defaultConf := "configs/config.yaml"
	if v, ok := conf.LookupEnv("CONF"); ok {
		defaultConf = v
	}

	rootCmd := &cobra.Command{
		Use:           Name,
		Short:         "Short-link redirect edge and click pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&confPath, "conf", defaultConf, "config path, eg: --conf configs/config.yaml")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve redirects, the internal API and the notification dispatchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(confPath, wireServer)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "worker",
		Short: "Consume queued clicks and emit click notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(confPath, wireWorker)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
