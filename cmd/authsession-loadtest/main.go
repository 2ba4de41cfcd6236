package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/credential"
	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/metrics/export/prometheus"
	"github.com/MrEthical07/authsession/persist"
	"github.com/MrEthical07/authsession/transport"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "yaml config path; CONFIG_PATH env is used when empty")
		workers    = flag.Int("workers", 0, "concurrent workers (overrides config)")
		requests   = flag.Int("requests", 0, "total requests (overrides config)")
		store      = flag.String("store", "", "memory, redis, file, postgres or pgx (overrides config)")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *requests > 0 {
		cfg.Requests = *requests
	}
	if *store != "" {
		cfg.Store = *store
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg loadConfig, logger *logrus.Logger) error {
	signer, err := jwt.NewSigner(jwt.SignerConfig{
		TTL:       cfg.AccessTTL,
		Algorithm: jwt.HS256,
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    "authsession-loadtest",
	})
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}

	server := newAuthServer(signer)
	srv := httptest.NewServer(server.routes())
	defer srv.Close()

	backend, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	httpTransport := &transport.HTTP{
		Client:     srv.Client(),
		RefreshURL: srv.URL + "/token",
		BaseURL:    srv.URL,
	}

	builder := authsession.New().
		WithExchanger(httpTransport).
		WithIssuer(httpTransport).
		WithPersistence(backend).
		WithLogger(logger).
		WithMetricsEnabled(cfg.Metrics).
		WithLatencyHistograms(cfg.Metrics)
	if cfg.Audit {
		builder = builder.WithAuditSink(authsession.NewLogrusSink(logger.WithField("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	var terminated atomic.Int32
	engine.Subscribe(func(ev authsession.SessionEvent) {
		terminated.Add(1)
		logger.WithField("epoch", ev.Epoch).WithError(ev.Reason).Warn("session terminated during load test")
	})

	resumed, err := engine.Start(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if !resumed {
		pair, err := login(ctx, srv.Client(), srv.URL+"/login")
		if err != nil {
			return err
		}
		if err := engine.StartSession(ctx, pair); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	}
	fmt.Printf("store=%s resumed=%t workers=%d requests=%d\n", cfg.Store, resumed, cfg.Workers, cfg.Requests)

	stop := make(chan struct{})
	if cfg.Revoke > 0 {
		go func() {
			t := time.NewTicker(cfg.Revoke)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-t.C:
					server.revoke()
				}
			}
		}()
	}

	stats := runPhase(ctx, engine, cfg.Requests, cfg.Workers)
	close(stop)

	fmt.Println("---- results ----")
	printStats("request", stats)
	fmt.Printf("exchanges=%d rejected=%d served=%d terminated=%d\n",
		server.exchange.Load(), server.rejected.Load(), server.served.Load(), terminated.Load())

	if cfg.Metrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.New(engine).Render())
	}
	return nil
}

func runPhase(ctx context.Context, engine *authsession.Engine, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				resp, err := engine.Do(ctx, authsession.NewRequest(http.MethodGet, "/api", nil))
				d := time.Since(t0)
				if err != nil || resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func login(ctx context.Context, client *http.Client, url string) (authsession.TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return authsession.TokenPair{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return authsession.TokenPair{}, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return authsession.TokenPair{}, fmt.Errorf("login: %w", err)
	}
	return authsession.TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}

func openStore(ctx context.Context, cfg loadConfig) (credential.Persistence, func(), error) {
	switch cfg.Store {
	case "redis":
		addr := cfg.RedisAddr
		var mr *miniredis.Miniredis
		if addr == "" {
			var err error
			mr, err = miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			addr = mr.Addr()
			fmt.Printf("using miniredis at %s\n", addr)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return persist.NewRedis(client, "", 0), func() {
			_ = client.Close()
			if mr != nil {
				mr.Close()
			}
		}, nil

	case "file":
		return persist.NewFile(cfg.FilePath), func() {}, nil

	case "postgres", "pgx":
		driver := "postgres"
		if cfg.Store == "pgx" {
			driver = "pgx"
		}
		db, err := sql.Open(driver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", driver, err)
		}
		backend, err := persist.NewSQL(db, cfg.Table)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if err := backend.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return backend, func() { _ = db.Close() }, nil

	default:
		return persist.NewMemory(), func() {}, nil
	}
}
