package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zabeloliver/smarthome-api/api"
	"github.com/zabeloliver/smarthome-api/events"
	"github.com/zabeloliver/smarthome-api/store"
)

func NewLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "smarthome",
		Short:         "In-memory SmartHome API for users, houses, rooms and devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "configFile", "config.yaml", "Path to the config.yaml File.")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	bootLogger, err := NewLogger("info", "")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(viper.New(), configPath, bootLogger.Sugar())
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	logger, err := NewLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	sugar := logger.Sugar()
	defer sugar.Sync() // flushes buffer, if any

	sugar.Info("Starting SmartHome API")
	s := store.New()

	// Create a non-global registry.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())
	m := NewMetrics(reg)
	m.seed(s)

	sinks, closeSinks, err := buildSinks(cfg, sugar)
	if err != nil {
		return err
	}
	defer closeSinks()
	sinks = append(sinks, m)

	e := newServer(cfg, api.New(s, sinks, sugar), m, reg, sugar)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infof("SmartHome API is now running on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildSinks connects the configured event sinks. Unset hosts leave a sink
// disabled.
func buildSinks(cfg *config, sugar *zap.SugaredLogger) (events.Multi, func(), error) {
	var sinks events.Multi
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.InfluxDB.Host != "" {
		sugar.Infof("Writing events to InfluxDB %s bucket %s", cfg.InfluxDB.Host, cfg.InfluxDB.Bucket)
		influx := events.NewInfluxSink(cfg.InfluxDB.Host, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket, cfg.InfluxDB.Measurement)
		sinks = append(sinks, influx)
		closers = append(closers, influx.Close)
	}
	if cfg.MQTT.Broker != "" {
		sugar.Infof("Publishing events to MQTT %s topic %s", cfg.MQTT.Broker, cfg.MQTT.Topic)
		mq, err := events.DialMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, byte(cfg.MQTT.QoS))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, mq)
		closers = append(closers, mq.Close)
	}
	return sinks, closeAll, nil
}

func newServer(cfg *config, a *api.API, m *metrics, reg *prometheus.Registry, sugar *zap.SugaredLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(m.middleware)
	if cfg.Log.Requests {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:    true,
			LogURI:       true,
			LogStatus:    true,
			LogLatency:   true,
			LogRequestID: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				sugar.Infow("request",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency", v.Latency,
					"request_id", v.RequestID,
				)
				return nil
			},
		}))
	}
	e.Use(middleware.Recover())

	a.Register(e)
	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	return e
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
