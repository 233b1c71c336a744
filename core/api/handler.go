package api

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"kmboard/core/obs"
	"kmboard/pkg/kmeans"
	"kmboard/pkg/kmeans/rpc"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type handler struct {
	// RPCAddr is the address of the rpc node that keeps the boards.
	RPCAddr string
	// Bounds for random blobs.
	Bounds obs.Bounds
	// Request caps, see APIConfig.
	MaxIntensity     int
	MaxConvergeSteps int

	// rand.Rand isn't safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func newHandler(cfg APIConfig) *handler {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &handler{
		RPCAddr:          cfg.RPCAddr,
		Bounds:           cfg.Bounds,
		MaxIntensity:     cfg.MaxIntensity,
		MaxConvergeSteps: cfg.MaxConvergeSteps,
		rng:              rand.New(rand.NewSource(seed)),
	}
}

func (h *handler) setRoutes(r *gin.Engine) {
	g := r.Group("/api/board")
	g.GET("", h.namespaces)
	g.GET("/:namespace", h.snapshot)
	g.GET("/:namespace/chart", h.chart)
	g.POST("/observe", h.observe)
	g.POST("/random", h.random)
	g.POST("/start", h.start)
	g.POST("/step", h.step)
	g.POST("/pause", h.pause)
	g.POST("/resume", h.resume)
	g.POST("/speed", h.speed)
	g.POST("/converge", h.converge)
	g.POST("/reset", h.reset)
}

// tryBind will try to unmarshal the request body into 'target'. If that
// fails, a bad request response is sent and false is returned.
func tryBind(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// tryLimit sends a bad request response and returns false if 'v' is above
// 'max'.
func tryLimit(c *gin.Context, field string, v, max int) bool {
	if v > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v %v is above the limit of %v", field, v, max)})
		return false
	}
	return true
}

// statusOf maps errors from the rpc layer to http status codes.
func statusOf(err error) int {
	var nsErr rpc.NamespaceErr
	switch {
	case errors.As(err, &nsErr):
		return http.StatusNotFound
	case errors.Is(err, kmeans.ErrInvalidConfiguration),
		errors.Is(err, kmeans.ErrDimensionMismatch),
		errors.Is(err, kmeans.ErrNonFinite):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rpc.ErrNotStarted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// tryRespond writes 'resp' as JSON if err is nil, else an error response.
// Returns false on errors.
func tryRespond(c *gin.Context, err error, resp interface{}) bool {
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("rpc call failed")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return false
	}
	c.JSON(http.StatusOK, resp)
	return true
}

func (h *handler) namespaces(c *gin.Context) {
	var err error
	namespaces := rpc.KMeansClient(h.RPCAddr, "", &err).Namespaces()
	if namespaces == nil {
		namespaces = []string{}
	}
	tryRespond(c, err, gin.H{"namespaces": namespaces})
}

// Stage observations; a namespace is generated if none is given.
func (h *handler) observe(c *gin.Context) {
	var req observeReq
	if !tryBind(c, &req) {
		return
	}
	if req.Namespace == "" {
		req.Namespace = uuid.New().String()
	}

	var err error
	pending := rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).Observe(req.Observations)
	tryRespond(c, err, observeResp{Namespace: req.Namespace, Pending: pending})
}

// Stage a random blob (obs.RandomBlob) around a random point in h.Bounds.
func (h *handler) random(c *gin.Context) {
	var req randomReq
	if !tryBind(c, &req) || !tryLimit(c, "intensity", req.Intensity, h.MaxIntensity) {
		return
	}
	if req.Namespace == "" {
		req.Namespace = uuid.New().String()
	}

	h.rngMu.Lock()
	args := obs.BlobArgs{Bounds: h.Bounds, Intensity: req.Intensity, MaxIntensity: h.MaxIntensity}
	blob, err := obs.PutRandomBlob(h.RPCAddr, req.Namespace, h.rng, args)
	h.rngMu.Unlock()

	tryRespond(c, err, randomResp{Namespace: req.Namespace, Observations: blob})
}

func (h *handler) start(c *gin.Context) {
	var req startReq
	if !tryBind(c, &req) {
		return
	}

	var err error
	resp := rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).Start(req.K, req.Seed)
	tryRespond(c, err, startResp{Namespace: req.Namespace, K: resp.K, Observations: resp.Observations})
}

func (h *handler) step(c *gin.Context) {
	var req namespaceReq
	if !tryBind(c, &req) {
		return
	}

	var err error
	snap := rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).Step()
	tryRespond(c, err, snap)
}

func (h *handler) pause(c *gin.Context) {
	var req namespaceReq
	if !tryBind(c, &req) {
		return
	}

	var err error
	rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).Pause()
	tryRespond(c, err, gin.H{"namespace": req.Namespace, "running": false})
}

func (h *handler) resume(c *gin.Context) {
	var req namespaceReq
	if !tryBind(c, &req) {
		return
	}

	var err error
	rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).Resume()
	tryRespond(c, err, gin.H{"namespace": req.Namespace, "running": true})
}

func (h *handler) speed(c *gin.Context) {
	var req speedReq
	if !tryBind(c, &req) {
		return
	}

	var err error
	speed := rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).SetSpeed(req.Speed)
	tryRespond(c, err, gin.H{"namespace": req.Namespace, "speed": speed})
}

func (h *handler) converge(c *gin.Context) {
	var req convergeReq
	if !tryBind(c, &req) || !tryLimit(c, "maxSteps", req.MaxSteps, h.MaxConvergeSteps) {
		return
	}

	var err error
	resp := rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).Converge(req.Threshold, req.MaxSteps)
	tryRespond(c, err, toConvergeResp(req.Namespace, resp))
}

func (h *handler) reset(c *gin.Context) {
	var req namespaceReq
	if !tryBind(c, &req) {
		return
	}

	var err error
	rpc.KMeansClient(h.RPCAddr, req.Namespace, &err).Reset()
	tryRespond(c, err, gin.H{"namespace": req.Namespace})
}

func (h *handler) snapshot(c *gin.Context) {
	var err error
	snap := rpc.KMeansClient(h.RPCAddr, c.Param("namespace"), &err).Snapshot()
	tryRespond(c, err, snap)
}

// Board as a html scatter chart.
func (h *handler) chart(c *gin.Context) {
	var err error
	snap := rpc.KMeansClient(h.RPCAddr, c.Param("namespace"), &err).Snapshot()
	if err != nil {
		tryRespond(c, err, nil)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderChart(c.Writer, snap); err != nil {
		log.Error().Err(err).Str("namespace", snap.Namespace).Msg("couldn't render chart")
	}
}
