package store

import "time"

// ScheduleStatus is the persisted state of a schedule.
type ScheduleStatus string

const (
	ScheduleActive ScheduleStatus = "active"
	SchedulePaused ScheduleStatus = "paused"
)

// ScheduleRecord is a persisted cron binding for a workflow. NextRunAt is
// kept consistent with cron+timezone at the time of the last computation.
type ScheduleRecord struct {
	ID         int64          `db:"id" json:"id"`
	WorkflowID int64          `db:"workflow_id" json:"workflowId"`
	Cron       string         `db:"cron" json:"cron"`
	Timezone   string         `db:"timezone" json:"timezone"`
	Profile    string         `db:"profile" json:"profile,omitempty"`
	Status     ScheduleStatus `db:"status" json:"status"`
	LastRunAt  *time.Time     `db:"last_run_at" json:"lastRunAt"`
	NextRunAt  *time.Time     `db:"next_run_at" json:"nextRunAt"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// Workflow is a published workflow row.
type Workflow struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// WorkflowVersion is one immutable definition snapshot of a workflow.
// The highest version is the latest.
type WorkflowVersion struct {
	ID             int64     `db:"id" json:"id"`
	WorkflowID     int64     `db:"workflow_id" json:"workflow_id"`
	Version        int       `db:"version" json:"version"`
	DefinitionJSON string    `db:"definition_json" json:"definition_json"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// draftRow is the raw workflow_drafts row; content lives in data_json.
type draftRow struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	Version     int       `db:"version"`
	DataJSON    string    `db:"data_json"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
