package model

import "time"

// CacheState is the lifecycle state of one cache domain.
type CacheState string

const (
	CacheIdle     CacheState = "idle"
	CacheBuilding CacheState = "building"
	CacheReady    CacheState = "ready"
)

// CacheBuildStatus is the cheap-to-poll status of a cache domain. It never
// carries the bulk payload.
type CacheBuildStatus struct {
	Domain        string     `json:"domain"`
	State         CacheState `json:"state"`
	LoadedUnits   int        `json:"loaded_units"`
	TotalUnits    int        `json:"total_units"`
	FailedUnits   []string   `json:"failed_units,omitempty"`
	LastBuildTime *time.Time `json:"last_build_time,omitempty"`
}
