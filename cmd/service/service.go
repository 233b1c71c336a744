package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kmboard/cfg"
	"kmboard/core/api"
	"kmboard/core/eventloop"
	"kmboard/pkg/kmeans/rpc"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var configFile = flag.String("cfg", "", "toml file overriding the defaults in package cfg")

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *configFile != "" {
		if err := cfg.Load(*configFile); err != nil {
			log.Fatal().Err(err).Msg("couldn't load config")
		}
	}

	level, err := zerolog.ParseLevel(cfg.LOG_LEVEL)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LOG_LEVEL).Msg("bad log level")
	}
	zerolog.SetGlobalLevel(level)
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// RPC node spawn.
	rpcNode := rpc.NewKMeansServer(cfg.LocalAddrRPC.ToStr(), rpc.NewSession)
	rpcNode.DefaultSpeed = cfg.BOARD_DEFAULT_SPEED
	rpcStop, err := rpc.StartListen(rpcNode)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.LocalAddrRPC.ToStr()).Msg("failed to start rpc node")
	}
	defer rpcStop()

	// Event loop talks to the node through the resolved address.
	cfg.ELT.LocalAddr = rpcNode.ListenAddr
	eltStop := eventloop.EventLoop(&cfg.ELT)
	defer eltStop()

	// API for user-facing interface.
	server, err := api.NewServer(api.APIConfig{
		Addr:         cfg.LocalAddrAPI.ToStr(),
		RPCAddr:      rpcNode.ListenAddr,
		ReadTimeout:  cfg.API_READ_TIMEOUT,
		WriteTimeout: cfg.API_WRITE_TIMEOUT,
		Bounds:       cfg.CANVAS,
		Seed:         cfg.API_SEED,

		MaxIntensity:     cfg.MAX_INTENSITY,
		MaxConvergeSteps: cfg.MAX_CONVERGE_STEPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up api")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("api listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped")
		return
	}
	log.Info().Msg("service stopped")
}
