package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Multiview/internal/adapters/directory"
	router "github.com/dkeye/Multiview/internal/adapters/http"
	"github.com/dkeye/Multiview/internal/adapters/jwtauth"
	"github.com/dkeye/Multiview/internal/app"
	"github.com/dkeye/Multiview/internal/app/orch"
	"github.com/dkeye/Multiview/internal/auth"
	"github.com/dkeye/Multiview/internal/config"
	"github.com/dkeye/Multiview/internal/logging"
	"github.com/dkeye/Multiview/internal/metrics"
)

func main() {
	seed := flag.Bool("seed", false, "create the development users and print a token for each, then exit")
	mint := flag.String("mint-token", "", "print a signed token for this user id, then exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of tokens printed by -seed and -mint-token")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logFile := logging.Setup(cfg.Mode, cfg.Log)
	defer logFile.Close()

	db, err := directory.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("directory unavailable")
	}
	store := directory.NewStore(db)
	verifier := jwtauth.NewVerifier(cfg.JWTSecret)

	switch {
	case *seed:
		if err := directory.Seed(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("seed failed")
		}
		users, err := store.Users(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("list users")
		}
		for _, u := range users {
			tok, err := verifier.Issue(strconv.FormatUint(uint64(u.ID), 10), *tokenTTL)
			if err != nil {
				log.Fatal().Err(err).Msg("issue token")
			}
			fmt.Printf("%-24s %-12s %s\n", u.Email, u.Role, tok)
		}
		return
	case *mint != "":
		tok, err := verifier.Issue(*mint, *tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("issue token")
		}
		fmt.Println(tok)
		return
	}

	gate := auth.NewGate(verifier, directory.NewCached(store, cfg.DirectoryCacheTTL))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	reg := app.NewRegistry()
	streams := app.NewStreams(reg)
	graph := app.NewGraph()
	o := orch.New(reg, streams, graph, m, cfg.Streams.MaxAge)

	janitor, err := app.NewJanitor(streams, cfg.Streams.EvictSchedule, cfg.Streams.MaxAge, func(int) {
		m.SetStreams(streams.Len())
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Streams.EvictSchedule).Msg("bad eviction schedule")
	}
	janitor.Start()
	defer janitor.Stop()

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Gate: gate, Metrics: m, Gatherer: promReg})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Multiview signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
