package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wlamlab/wlam_node/internal/config"
	"github.com/wlamlab/wlam_node/internal/encoder"
	"github.com/wlamlab/wlam_node/internal/environment"
	"github.com/wlamlab/wlam_node/internal/model"
	"github.com/wlamlab/wlam_node/internal/node"
	"github.com/wlamlab/wlam_node/internal/radio"
	"github.com/wlamlab/wlam_node/internal/scheduler"
	"github.com/wlamlab/wlam_node/internal/stats"
	"github.com/wlamlab/wlam_node/pkg/broker"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to node configuration")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("configuration rejected", zap.Error(err))
	}

	nodeID := cfg.Node.ID
	if nodeID == "" {
		nodeID = "wlam-node-" + uuid.NewString()
	}

	seed, err := cfg.ResolveSeed()
	if err != nil {
		logger.Fatal("seed unavailable", zap.Error(err))
	}
	rng := rand.New(rand.NewSource(seed))
	logger.Info("node starting",
		zap.String("node_id", nodeID),
		zap.Int64("seed", seed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Timers ===
	timers := scheduler.NewTimerSet(rng)
	jitter := cfg.Sensors.IntervalJitterFraction
	for _, sc := range []struct {
		kind      model.SensorKind
		period    time.Duration
		isCounter bool
	}{
		{model.Temperature, cfg.Sensors.TemperatureInterval, false},
		{model.Gas, cfg.Sensors.GasInterval, false},
		{model.Humidity, cfg.Sensors.HumidityInterval, false},
		{model.Counter, cfg.Sensors.CounterInterval, true},
	} {
		if err := timers.Configure(sc.kind, 0, sc.period, jitter, sc.isCounter); err != nil {
			logger.Fatal("sensor configuration rejected",
				zap.Stringer("kind", sc.kind), zap.Error(err))
		}
	}

	// === Encoder ===
	gen := environment.New(environment.Params{
		BaseTemperature:      cfg.Environment.BaseTemperature,
		AmplitudeTemperature: cfg.Environment.AmplitudeTemperature,
		BaseHumidity:         cfg.Environment.BaseHumidity,
		AmplitudeHumidity:    cfg.Environment.AmplitudeHumidity,
		BaseGas:              cfg.Environment.BaseGas,
		AmplitudeGas:         cfg.Environment.AmplitudeGas,
	}, rng)
	builder, err := encoder.NewBuilder(gen, nodeID, cfg.Payload.BaseBytes, cfg.Payload.CounterBytes)
	if err != nil {
		logger.Fatal("payload configuration rejected", zap.Error(err))
	}

	// === Radio ===
	binder := radio.NewBinder(&model.RadioParameters{
		TxPowerDbm:        cfg.Radio.TxPowerDbm,
		CenterFrequencyHz: cfg.Radio.CenterFrequencyHz,
		SpreadingFactor:   cfg.Radio.SpreadingFactor,
		BandwidthHz:       cfg.Radio.BandwidthHz,
		CodingRate:        cfg.Radio.CodingRate,
	}, logger)

	// === Broker ===
	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = nodeID
	}
	client, err := broker.Connect(&broker.Config{
		Host:     cfg.Broker.Host,
		Port:     cfg.Broker.Port,
		User:     cfg.Broker.User,
		Password: cfg.Broker.Password,
		ClientID: clientID,
	}, ctx)
	if err != nil {
		logger.Fatal("broker connection failed", zap.Error(err))
	}
	defer broker.Close(client)

	uplink := radio.NewUplinkSink(broker.NewPublisher(client, cfg.Broker.UplinkTopic, 0), logger)
	downlink := radio.NewDownlink(broker.NewConsumer(client, cfg.Broker.DownlinkTopic, 0, nil), logger)
	go downlink.Run(ctx)

	// === Stats ===
	recorders := stats.Multi{}
	reg := prometheus.NewRegistry()
	recorders = append(recorders, stats.NewProm(reg))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	hs := &http.Server{
		Addr:              cfg.Stats.PrometheusAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.Stats.PrometheusAddr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	if cfg.Stats.Influx.URL != "" {
		influx := influxdb2.NewClient(cfg.Stats.Influx.URL, cfg.Stats.Influx.Token)
		defer influx.Close()
		writeAPI := influx.WriteAPI(cfg.Stats.Influx.Org, cfg.Stats.Influx.Bucket)
		recorders = append(recorders, stats.NewInflux(writeAPI, nodeID))
	}

	// === Driver ===
	var clock node.Clock = node.ScaledClock{Factor: cfg.Sim.TimeScale}
	if cfg.Sim.TimeScale <= 0 {
		clock = node.InstantClock{}
	}
	driver := node.NewDriver(timers, builder, binder, uplink, recorders, clock, cfg.Sim.Duration, logger)

	// === Run until done or signalled ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()

	if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("driver stopped", zap.Error(err))
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
}
