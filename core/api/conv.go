package api

import (
	"math"

	"kmboard/pkg/kmeans"
	"kmboard/pkg/kmeans/rpc"
)

// Request bodies. Namespace is optional where a board is created on demand.

type observeReq struct {
	Namespace    string               `json:"namespace"`
	Observations []kmeans.Observation `json:"observations"`
}

type randomReq struct {
	Namespace string `json:"namespace"`
	Intensity int    `json:"intensity" binding:"required,min=1"`
}

type namespaceReq struct {
	Namespace string `json:"namespace" binding:"required"`
}

type startReq struct {
	Namespace string `json:"namespace" binding:"required"`
	K         int    `json:"k"`
	Seed      int64  `json:"seed"`
}

type speedReq struct {
	Namespace string `json:"namespace" binding:"required"`
	Speed     int    `json:"speed"`
}

type convergeReq struct {
	Namespace string  `json:"namespace" binding:"required"`
	Threshold float64 `json:"threshold"`
	MaxSteps  int     `json:"maxSteps" binding:"min=0"`
}

// Responses.

type observeResp struct {
	Namespace string `json:"namespace"`
	Pending   int    `json:"pending"`
}

type randomResp struct {
	Namespace    string               `json:"namespace"`
	Observations []kmeans.Observation `json:"observations"`
}

type startResp struct {
	Namespace    string `json:"namespace"`
	K            int    `json:"k"`
	Observations int    `json:"observations"`
}

type convergeResp struct {
	Namespace string `json:"namespace"`
	Steps     int    `json:"steps"`
	// Shift is nil when no step was done (the shift is infinite then).
	Shift *float64 `json:"shift"`
}

// conv rpc.ConvergeResp -> convergeResp. JSON can't carry Inf.
func toConvergeResp(namespace string, r rpc.ConvergeResp) convergeResp {
	resp := convergeResp{Namespace: namespace, Steps: r.Steps}
	if !math.IsInf(r.Shift, 0) && !math.IsNaN(r.Shift) {
		shift := r.Shift
		resp.Shift = &shift
	}
	return resp
}
