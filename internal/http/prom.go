package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildInfo is always 1; its labels describe the running binary.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "embedd_build_info",
			Help: "Build and model information for the running embedd server",
		},
		[]string{"version", "model", "backend"},
	)

	// OutputDimension is the vector size clients receive. 0 means the
	// model's native size.
	OutputDimension = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "embedd_output_dimension",
			Help: "Configured output vector dimension (0 = native model dimension)",
		},
	)
)

// RecordBuildInfo publishes the build and output dimension gauges.
func RecordBuildInfo(version, model, backend string, targetDim int) {
	BuildInfo.Reset()
	BuildInfo.WithLabelValues(version, model, backend).Set(1)
	OutputDimension.Set(float64(targetDim))
}
