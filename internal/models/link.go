package models

import "time"

// LinkStat is one row of the mesoscopic engine's link-statistics table.
type LinkStat struct {
	LinkID string  `json:"link_id" parquet:"name=link_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Time   float64 `json:"time" parquet:"name=time,type=DOUBLE"`
	Delay  float64 `json:"delay" parquet:"name=delay,type=DOUBLE"`
}

// MicroResult is the scalar outcome of one microscopic hotspot run.
type MicroResult struct {
	AvgDelay    float64 `json:"avg_delay"`
	AvgTimeLoss float64 `json:"avg_time_loss"`
	Vehicles    int     `json:"vehicles"`
}

// Correction maps a link's original mesoscopic travel time to its corrected
// value. Links without a micro result pass through unchanged with
// Applied=false, so no travel time is ever lost during reintegration.
type Correction struct {
	Original  float64 `json:"orig"`
	Corrected float64 `json:"corrected"`
	Applied   bool    `json:"applied"`
}

// MesoResult bundles the parsed outputs of one mesoscopic run.
type MesoResult struct {
	LinkStats    []LinkStat         `json:"link_stats"`
	EventSummary map[string]float64 `json:"event_summary,omitempty"`
}

// RunResult is the final artifact of a full hybrid pipeline run,
// persisted to output/final_results.json.
type RunResult struct {
	RunID          string                `json:"run_id"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	Hotspots       []string              `json:"hotspots"`
	FailedHotspots map[string]string     `json:"failed_hotspots,omitempty"`
	Corrections    map[string]Correction `json:"corrections"`
	LinkCount      int                   `json:"link_count"`
}

type RunState string

const (
	RunStateIdle     RunState = "idle"
	RunStateRunning  RunState = "running"
	RunStateComplete RunState = "complete"
	RunStateError    RunState = "error"
)

// RunStatus is the externally visible state of the run manager.
type RunStatus struct {
	State          RunState          `json:"state"`
	RunID          string            `json:"run_id,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
	FailedHotspots map[string]string `json:"failed_hotspots,omitempty"`
}
