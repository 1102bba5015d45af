package model

// Statistics summarizes a series of durations expressed in milliseconds.
type Statistics struct {
	Count                  int     `json:"count"`
	Mean                   float64 `json:"mean"`
	Min                    float64 `json:"min"`
	Max                    float64 `json:"max"`
	Variance               float64 `json:"variance"`
	StdDev                 float64 `json:"std_dev"`
	CoefficientOfVariation float64 `json:"cv"`
	P50                    float64 `json:"p50"`
	P95                    float64 `json:"p95"`
	P99                    float64 `json:"p99"`
}

// LatencyStatistics is the reduced summary kept for network overhead series.
type LatencyStatistics struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}
