package constants

// RunStatus is the canonical status for rows in pipeline_run.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"   // stage in progress
	RunStatusCompleted RunStatus = "COMPLETED" // every record produced an outcome
	RunStatusAborted   RunStatus = "ABORTED"   // a record failed without continue-on-fail
)
