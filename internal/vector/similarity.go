package vector

import (
	"fmt"
	"math"
	"strings"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/pkg/utils"
)

// Metric is a distance or similarity measure understood by the vector database.
type Metric string

const (
	MetricL2     Metric = "L2"
	MetricIP     Metric = "IP"
	MetricCosine Metric = "COSINE"
)

// ParseMetric accepts a case-insensitive metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToUpper(strings.TrimSpace(s))); m {
	case MetricL2, MetricIP, MetricCosine:
		return m, nil
	case "":
		return MetricL2, nil
	default:
		return "", fmt.Errorf("%w: unsupported metric %q", models.ErrConfiguration, s)
	}
}

// Score computes the metric between a and b. L2 is the squared Euclidean distance.
func (m Metric) Score(a, b []float32) float64 {
	switch m {
	case MetricIP:
		return utils.Dot(a, b)
	case MetricCosine:
		na, nb := L2Norm(a), L2Norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return utils.Dot(a, b) / (na * nb)
	default:
		return utils.SquaredL2(a, b)
	}
}

// Nearer reports whether score a ranks ahead of score b.
func (m Metric) Nearer(a, b float64) bool {
	if m == MetricL2 {
		return a < b
	}
	return a > b
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
