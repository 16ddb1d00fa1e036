package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qubic/chains-status/api"
	"github.com/qubic/chains-status/db"
	"github.com/qubic/chains-status/domain"
	"github.com/qubic/chains-status/elastic"
	"github.com/qubic/chains-status/kafka"
	"github.com/qubic/chains-status/metrics"
	"github.com/qubic/chains-status/publish"
	"github.com/qubic/chains-status/redis"
	"github.com/qubic/chains-status/registry"
	"github.com/qubic/chains-status/rpc"
	"github.com/qubic/chains-status/subgraph"
	"github.com/qubic/chains-status/sync"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "QUBIC_CHAINS_STATUS"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	log.SetOutput(os.Stdout)

	// optional, for local development
	if err := godotenv.Load(); err == nil {
		log.Println("main: Loaded environment from .env file.")
	}

	var cfg struct {
		Registry struct {
			File           string        `conf:"default:chains.yaml"`
			ReloadInterval time.Duration `conf:"default:5m"`
		}
		Subgraph struct {
			Timeout time.Duration `conf:"default:10s"`
		}
		Sync struct {
			MaxChunkCount         int           `conf:"default:4"`
			PollInterval          time.Duration `conf:"default:30s"`
			InitialDelay          time.Duration `conf:"default:15s"`
			FirstTickPlaceholders bool          `conf:"default:false"`
			RestoreLastStatus     bool          `conf:"default:true"`
			PublishTimeout        time.Duration `conf:"default:10s"`
			MetricsNamespace      string        `conf:"default:qubic-chains-status"`
		}
		Store struct {
			InternalStoreFolder string `conf:"default:store"`
		}
		Broker struct {
			Enabled          bool     `conf:"default:false"`
			BootstrapServers []string `conf:"default:localhost:9092"`
			ProduceTopic     string   `conf:"default:qubic-chains-status"`
		}
		Redis struct {
			Enabled  bool          `conf:"default:false"`
			Address  string        `conf:"default:localhost:6379"`
			Password string        `conf:"optional,mask"`
			Key      string        `conf:"default:chains-status"`
			Channel  string        `conf:"default:chains-status-updates"`
			Ttl      time.Duration `conf:"default:10m"`
		}
		Elastic struct {
			Enabled         bool     `conf:"default:false"`
			Addresses       []string `conf:"default:https://localhost:9200"`
			Username        string   `conf:"default:qubic-ingestion"`
			Password        string   `conf:"optional,mask"`
			IndexName       string   `conf:"default:qubic-chains-status"`
			CertificatePath string   `conf:"default:http_ca.crt"`
		}
		Server struct {
			HttpHost        string `conf:"default:0.0.0.0:8000"`
			GrpcHost        string `conf:"default:0.0.0.0:8001"`
			MetricsHttpHost string `conf:"default:0.0.0.0:9999"`
		}
		Logging struct {
			Level string `conf:"default:info"`
		}
		Api struct {
			ExplorerUrl string `conf:"default:https://connextscan.io"`
		}
	}

	if err := conf.Parse(os.Args[1:], envPrefix, &cfg); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(envPrefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(envPrefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	m := metrics.NewMetrics(cfg.Sync.MetricsNamespace)

	// chain registry and subgraph client. The client follows registry reloads.
	subgraphClient := subgraph.NewClient(cfg.Subgraph.Timeout)
	chainRegistry := registry.NewFileRegistry(cfg.Registry.File, cfg.Registry.ReloadInterval)
	chainRegistry.OnChange(subgraphClient.Configure)
	chains, err := chainRegistry.ListChains(context.Background())
	if err != nil {
		log.Printf("[WARN] main: could not load chains from [%s]: %v", cfg.Registry.File, err)
	} else {
		log.Printf("main: Monitoring [%d] chains.", len(chains))
	}

	store, err := db.NewPebbleStore(cfg.Store.InternalStoreFolder)
	if err != nil {
		return fmt.Errorf("creating db: %w", err)
	}
	defer store.Close()

	grpcServer := rpc.NewHealthServer(cfg.Server.GrpcHost)

	fanout := publish.NewFanout(cfg.Sync.PublishTimeout, m, sLogger)
	fanout.Add("store", store)
	fanout.Add("grpc-health", grpcServer)

	if cfg.Broker.Enabled {
		kafkaMetrics := kprom.NewMetrics(cfg.Sync.MetricsNamespace,
			kprom.Registerer(prometheus.DefaultRegisterer),
			kprom.Gatherer(prometheus.DefaultGatherer))
		kcl, err := kgo.NewClient(
			kgo.WithHooks(kafkaMetrics),
			kgo.SeedBrokers(cfg.Broker.BootstrapServers...),
			kgo.DefaultProduceTopic(cfg.Broker.ProduceTopic),
			kgo.ProducerBatchCompression(kgo.ZstdCompression()),
		)
		if err != nil {
			return fmt.Errorf("creating kafka client: %w", err)
		}
		defer kcl.Close()
		fanout.Add("kafka", kafka.NewStatusProducer(kcl))
	}

	if cfg.Redis.Enabled {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
		})
		defer rdb.Close()
		fanout.Add("redis", redis.NewPublisher(rdb, cfg.Redis.Key, cfg.Redis.Channel, cfg.Redis.Ttl))
	}

	if cfg.Elastic.Enabled {
		cert, err := os.ReadFile(cfg.Elastic.CertificatePath)
		if err != nil {
			log.Printf("[WARN] main: could not read elastic certificate: %v", err)
		}
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses:     cfg.Elastic.Addresses,
			Username:      cfg.Elastic.Username,
			Password:      cfg.Elastic.Password,
			CACert:        cert,
			RetryOnStatus: []int{502, 503, 504, 429},
		})
		if err != nil {
			return fmt.Errorf("creating elastic client: %w", err)
		}
		fanout.Add("elastic", elastic.NewClient(esClient, cfg.Elastic.IndexName))
	}
	log.Printf("main: Publishing to sinks %v.", fanout.Sinks())

	poller := sync.NewPoller(chainRegistry, subgraphClient, fanout, m, sLogger, sync.Config{
		MaxChunkCount:         cfg.Sync.MaxChunkCount,
		PollInterval:          cfg.Sync.PollInterval,
		InitialDelay:          cfg.Sync.InitialDelay,
		FirstTickPlaceholders: cfg.Sync.FirstTickPlaceholders,
	})
	if cfg.Sync.RestoreLastStatus {
		err = restoreLastSnapshot(store, poller)
		if err != nil {
			return fmt.Errorf("restoring last status: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverError := make(chan error, 1)
	err = grpcServer.Start(serverError)
	if err != nil {
		return fmt.Errorf("starting grpc server: %w", err)
	}
	defer grpcServer.Stop()

	apiError := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		handler := api.NewHandler(poller, cfg.Api.ExplorerUrl)
		mux.HandleFunc("GET /v1/chains/status", handler.GetStatus)
		mux.HandleFunc("GET /v1/chains/alerts", handler.GetAlerts)
		mux.HandleFunc("GET /health", handler.GetHealth)
		log.Printf("main: Starting server on addr [%s].", cfg.Server.HttpHost)
		apiError <- http.ListenAndServe(cfg.Server.HttpHost, mux)
	}()

	metricsError := make(chan error, 1)
	go func() {
		log.Printf("main: Starting metrics server on addr [%s].", cfg.Server.MetricsHttpHost)
		http.Handle("/metrics", promhttp.Handler())
		metricsError <- http.ListenAndServe(cfg.Server.MetricsHttpHost, nil)
	}()

	log.Println("main: Service started.")

	for {
		select {
		case <-shutdown:
			log.Println("main: Received shutdown signal, shutting down...")
			return nil
		case err := <-metricsError:
			return fmt.Errorf("[ERROR] starting metrics server: %v", err)
		case err := <-apiError:
			return fmt.Errorf("[ERROR] starting api server: %v", err)
		case err := <-serverError:
			return fmt.Errorf("[ERROR] starting grpc server: %v", err)
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	config := zap.NewProductionConfig()
	config.Level = atomicLevel
	// readable date instead of epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	return config.Build()
}

type snapshotStore interface {
	GetLastSnapshot() (*domain.Snapshot, error)
}

type snapshotRestorer interface {
	Restore(snapshot *domain.Snapshot)
}

func restoreLastSnapshot(store snapshotStore, restorer snapshotRestorer) error {
	snapshot, err := store.GetLastSnapshot()
	if errors.Is(err, db.ErrNotFound) {
		log.Println("[INFO] main: No previous chains status stored.")
		return nil
	} else if err != nil {
		return fmt.Errorf("getting last snapshot: %w", err)
	}
	log.Printf("main: Restored chains status of generation [%d] with [%d] chains.", snapshot.Generation, len(snapshot.Chains))
	restorer.Restore(snapshot)
	return nil
}
