// Package model defines the shared types of the accessibility pipeline.
package model

import "time"

// RunStatus represents the current state of a scoring run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Params are the constants a run was computed with.
type Params struct {
	WalkingSpeed    float64 `json:"walking_speed" yaml:"walking_speed"`
	TransitSpeed    float64 `json:"transit_speed" yaml:"transit_speed"`
	K               int     `json:"k" yaml:"k"`
	Cutoff          float64 `json:"cutoff" yaml:"cutoff"`
	UnderservedTier int     `json:"underserved_tier" yaml:"underserved_tier"`
	WellServedTier  int     `json:"well_served_tier" yaml:"well_served_tier"`
	DuplicatePolicy string  `json:"duplicate_policy" yaml:"duplicate_policy"`
}

// Phase is one timed stage of a run.
type Phase struct {
	Name     string        `json:"name" yaml:"name"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Breakdown records wall-clock time per pipeline phase.
type Breakdown []Phase

// Total returns the summed duration of all phases.
func (b Breakdown) Total() time.Duration {
	var total time.Duration
	for _, p := range b {
		total += p.Duration
	}
	return total
}

// GraphStats summarizes a built network.
type GraphStats struct {
	StopNodes    int `json:"stop_nodes" yaml:"stop_nodes"`
	ZoneNodes    int `json:"zone_nodes" yaml:"zone_nodes"`
	TransitEdges int `json:"transit_edges" yaml:"transit_edges"`
	AccessEdges  int `json:"access_edges" yaml:"access_edges"`
}

// Nodes returns the total node count.
func (s GraphStats) Nodes() int { return s.StopNodes + s.ZoneNodes }

// Edges returns the total directed edge count.
func (s GraphStats) Edges() int { return s.TransitEdges + s.AccessEdges }

// ScoreCounts tallies scores by kind.
type ScoreCounts struct {
	Finite      int `json:"finite" yaml:"finite"`
	ClosedForm  int `json:"closed_form" yaml:"closed_form"`
	Unreachable int `json:"unreachable" yaml:"unreachable"`
}

// RunSummary is the persisted outcome of a run.
type RunSummary struct {
	Params     Params      `json:"params" yaml:"params"`
	Graph      GraphStats  `json:"graph" yaml:"graph"`
	WellServed int         `json:"well_served" yaml:"well_served"`
	Counts     ScoreCounts `json:"counts" yaml:"counts"`
	Breakdown  Breakdown   `json:"breakdown" yaml:"breakdown"`
}

// Run is a stored scoring run.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Params    Params      `json:"params"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ZoneScore is one row of a stored reachability mapping.
type ZoneScore struct {
	ZoneID string  `json:"zone_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Score  Score   `json:"score"`
}
