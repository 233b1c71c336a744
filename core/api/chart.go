package api

import (
	"fmt"
	"io"

	"kmboard/pkg/kmeans/rpc"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Symbol sizes on the chart.
const (
	pointSize    = 8
	centroidSize = 20
)

// scatterPoint picks the first two coordinates of a vector, missing ones
// are drawn as zero.
func scatterPoint(v []float64, size int) opts.ScatterData {
	var x, y float64
	if len(v) > 0 {
		x = v[0]
	}
	if len(v) > 1 {
		y = v[1]
	}
	return opts.ScatterData{Value: []interface{}{x, y}, SymbolSize: size}
}

// newBoardScatter draws a board: one series per cluster, one with centroids
// and one with observations that are still pending.
func newBoardScatter(snap rpc.BoardSnapshot) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Board '%v'", snap.Namespace),
			Subtitle: fmt.Sprintf("k=%d iteration=%d", snap.State.K, snap.State.Iteration),
		}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
	)

	clusters := make([][]opts.ScatterData, snap.State.K)
	for i, o := range snap.State.Observations {
		label := snap.State.Labels[i]
		clusters[label] = append(clusters[label], scatterPoint(o, pointSize))
	}
	for i, points := range clusters {
		scatter.AddSeries(fmt.Sprintf("Cluster %d", i), points)
	}

	centroids := make([]opts.ScatterData, len(snap.State.Centroids))
	for i, c := range snap.State.Centroids {
		centroids[i] = scatterPoint(c, centroidSize)
	}
	scatter.AddSeries("Centroids", centroids)

	pending := make([]opts.ScatterData, len(snap.Pending))
	for i, o := range snap.Pending {
		pending[i] = scatterPoint(o, pointSize)
	}
	scatter.AddSeries("Pending", pending)

	return scatter
}

// renderChart writes the board as a standalone html page.
func renderChart(w io.Writer, snap rpc.BoardSnapshot) error {
	return newBoardScatter(snap).Render(w)
}
