/*
The api package defines a JSON API for the system, routed with gin. See
routes in ./handler.go.

*/
package api

import (
	"errors"
	"net/http"
	"time"

	"kmboard/core/obs"
	"kmboard/pkg/kmeans/rpc"
	"kmboard/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// APIConfig is used as args to the Start func.
type APIConfig struct {
	// Addr specifies the address of the server.
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RPCAddr is the address of the rpc node (pkg/kmeans/rpc) that keeps
	// the boards, not to be confused with the Addr field of this struct.
	RPCAddr string

	// Bounds random blobs are placed in, obs.CanvasBounds if not set.
	Bounds obs.Bounds
	// Seed for random blobs, zero for a clock based one.
	Seed int64

	// MaxIntensity is the largest intensity accepted for random blobs,
	// obs.DefaultMaxIntensity if not set.
	MaxIntensity int
	// MaxConvergeSteps is the largest maxSteps accepted for converge,
	// rpc.MaxConvergeSteps if not set (or above it).
	MaxConvergeSteps int
}

func (cfg *APIConfig) check() error {
	if cfg.RPCAddr == "" {
		return errors.New("unexpected empty RPCAddr field in APIConfig")
	}
	if cfg.Bounds.Dim() == 0 {
		cfg.Bounds = obs.CanvasBounds
	}
	if cfg.MaxIntensity < 1 {
		cfg.MaxIntensity = obs.DefaultMaxIntensity
	}
	if cfg.MaxConvergeSteps < 1 || cfg.MaxConvergeSteps > rpc.MaxConvergeSteps {
		cfg.MaxConvergeSteps = rpc.MaxConvergeSteps
	}
	return nil
}

// requestLogger logs every request through zerolog.
func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	log.Debug().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("latency", time.Since(start)).
		Msg("api request")
}

// cors allows browsers from anywhere to use the API.
func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// NewRouter sets up all routes of the API.
func NewRouter(cfg APIConfig) (*gin.Engine, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger, cors)

	h := newHandler(cfg)
	h.setRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return r, nil
}

// NewServer creates (but doesn't start) a http.Server for the API.
func NewServer(cfg APIConfig) (*http.Server, error) {
	r, err := NewRouter(cfg)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, nil
}

// Start starts a http.Server which is intended to be used to interface the
// system. Blocks until the server fails.
func Start(cfg APIConfig) error {
	s, err := NewServer(cfg)
	if err != nil {
		return err
	}
	log.Info().Str("addr", cfg.Addr).Msg("api listening")
	return s.ListenAndServe()
}
