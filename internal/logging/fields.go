package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. "cursor_persisted").
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings that mean records were lost or skipped.
	FieldAlert = "alert"
	// FieldRunID identifies one daemon run.
	FieldRunID = "run_id"
	// FieldContainerID is the container a journal entry belongs to.
	FieldContainerID = "container_id"
	// FieldCursor is a journal position.
	FieldCursor = "cursor"
	// FieldState is a watcher lifecycle state.
	FieldState = "state"
	// FieldSourcePath is the journal directory or export file being read.
	FieldSourcePath = "source_path"
)
