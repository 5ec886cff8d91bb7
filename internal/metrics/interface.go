package metrics

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for metrics data storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one control-loop iteration: the per-core telemetry that was
// sampled and the frequency decision derived from it.
type Snapshot struct {
	Timestamp time.Time
	Cores     []CoreSample
	Decision  Decision
}

type CoreSample struct {
	Core               int
	TemperatureCelsius float64
	FrequencyMHz       uint64
	PowerWatts         float64
}

type Decision struct {
	LoadPercent        float64
	MaxTemperature     float64
	TargetFrequencyMHz uint64
	Applied            bool
}
