package probe

import "context"

// GPUSample is one GPU as reported by a single probe invocation.
type GPUSample struct {
	Index              int    `json:"index"`
	Name               string `json:"name"`
	MemoryUsedMB       int    `json:"memory_used_mb"`
	MemoryTotalMB      int    `json:"memory_total_mb"`
	UtilizationPercent int    `json:"utilization_percent"`
}

// Querier abstracts GPU sampling for testability.
type Querier interface {
	// Query returns the current GPUs. It never fails; an unavailable
	// probe yields an empty, non-nil slice.
	Query(ctx context.Context) []GPUSample
}
