package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cosmossdk.io/math"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/emberfi/stake-engine/internal/config"
	"github.com/emberfi/stake-engine/internal/engine"
	"github.com/emberfi/stake-engine/internal/metrics"
	"github.com/emberfi/stake-engine/internal/params"
	"github.com/emberfi/stake-engine/internal/stake"
	"github.com/emberfi/stake-engine/internal/store"
	"github.com/emberfi/stake-engine/internal/token"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.DSN != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			slog.Error("invalid database DSN", "err", err)
			os.Exit(1)
		}
		if cfg.Database.PoolMaxConns > 0 {
			poolCfg.MaxConns = int32(cfg.Database.PoolMaxConns)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if cfg.Database.RunMigration {
			if err := pg.EnsureSchema(ctx); err != nil {
				slog.Error("schema migration failed", "err", err)
				os.Exit(1)
			}
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL.Duration)
			slog.Info("Redis cache enabled", "addr", cfg.Redis.Addr)
		}
	} else {
		slog.Warn("database DSN not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Seed owner parameters from config ---
	// Config is authoritative at boot; the admin API mutates at runtime.
	bootParams, err := paramsFromConfig(cfg.Staking)
	if err != nil {
		slog.Error("invalid staking parameters", "err", err)
		os.Exit(1)
	}
	if err := st.SaveParams(ctx, bootParams); err != nil {
		slog.Error("failed to seed parameters", "err", err)
		os.Exit(1)
	}

	// --- Engines ---
	accountant, err := engine.NewAccountant(engine.IssuancePolicy(cfg.Staking.IssuancePolicy))
	if err != nil {
		slog.Error("invalid issuance policy", "err", err)
		os.Exit(1)
	}
	settlement, err := engine.NewSettlement(engine.PositionModel(cfg.Staking.PositionModel))
	if err != nil {
		slog.Error("invalid position model", "err", err)
		os.Exit(1)
	}

	// --- Token collaborators ---
	var tokens stake.Collaborators
	if cfg.Chain.RPCURL != "" {
		signer, err := token.NewEVMSigner(ctx, cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.ChainID)
		if err != nil {
			slog.Error("chain connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, signer.Close)

		principal, err := token.NewEVMToken(signer, cfg.Chain.PrincipalToken, "PT")
		if err != nil {
			slog.Error("principal token bind failed", "err", err)
			os.Exit(1)
		}
		yield, err := token.NewEVMToken(signer, cfg.Chain.YieldToken, "YT")
		if err != nil {
			slog.Error("yield token bind failed", "err", err)
			os.Exit(1)
		}
		wrapper, err := token.NewEVMWrapper(signer, cfg.Chain.WrapperToken)
		if err != nil {
			slog.Error("wrapper bind failed", "err", err)
			os.Exit(1)
		}
		tokens = stake.Collaborators{
			Principal: principal,
			Yield:     yield,
			Wrapper:   wrapper,
			Revenue:   token.NewEVMRevenuePool(wrapper, cfg.Chain.RevenueAddress),
		}
		slog.Info("on-chain token adapters bound", "rpc", cfg.Chain.RPCURL, "chain_id", cfg.Chain.ChainID)
	} else {
		slog.Warn("chain RPC not set, using in-memory token adapters")
		memWrapper := token.NewMemoryWrapper()
		tokens = stake.Collaborators{
			Principal: token.NewMemoryToken("PT"),
			Yield:     token.NewMemoryToken("YT"),
			Wrapper:   memWrapper,
			Revenue:   token.NewMemoryRevenuePool(memWrapper),
		}
	}

	// --- WebSocket hub ---
	wsHub := stake.NewWSHub()
	go wsHub.Run()

	// --- Stake service ---
	svc := stake.NewService(st, accountant, settlement, tokens,
		cfg.Auth.AdminKey, cfg.Auth.ReporterKey, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	corsOrigin := "*"
	if len(cfg.Server.CORSOrigins) > 0 {
		corsOrigin = strings.Join(cfg.Server.CORSOrigins, ", ")
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key, X-Reporter-Key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"stake-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time ledger events.
		r.Get("/ws", wsHub.HandleWS)

		// Staking lifecycle.
		r.Post("/stake", svc.Stake)
		r.Post("/unstake", svc.Unstake)
		r.Get("/positions", svc.ListPositions)
		r.Get("/positions/{positionID}", svc.GetPosition)
		r.Post("/positions/{positionID}/extend", svc.ExtendLock)
		r.Get("/positions/{positionID}/history", svc.GetPositionHistory)
		r.Get("/users/{user}/history", svc.GetUserHistory)

		// Yield accrual and distribution.
		r.Post("/yield/accrue", svc.AccrueYield)
		r.Post("/yield/withdraw", svc.WithdrawYield)

		// Pool and parameter queries.
		r.Get("/pool", svc.GetPool)
		r.Get("/params", svc.GetParams)
		r.Put("/admin/params", svc.UpdateParams)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("stake-engine listening", "addr", srv.Addr,
			"position_model", cfg.Staking.PositionModel,
			"issuance_policy", cfg.Staking.IssuancePolicy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	slog.Info("shutting down stake-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("stake-engine stopped")
}

func paramsFromConfig(sc config.StakingConfig) (params.Params, error) {
	minStake, ok := math.NewIntFromString(sc.MinStake)
	if !ok {
		return params.Params{}, fmt.Errorf("invalid min_stake %q", sc.MinStake)
	}
	p := params.Params{
		MinLockupDays:       sc.MinLockupDays,
		MaxLockupDays:       sc.MaxLockupDays,
		ForceUnstakeFeeRate: sc.ForceUnstakeFeeRate,
		BurnedYTFeeRate:     sc.BurnedYTFeeRate,
		MinStake:            minStake,
	}
	if err := p.Validate(); err != nil {
		return params.Params{}, err
	}
	return p, nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
