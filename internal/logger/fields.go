package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the upload job ID
	FieldJobID = "job_id"

	// FieldFile is the filename being processed within a job
	FieldFile = "file"

	// FieldStage is the pipeline stage name
	FieldStage = "stage"

	// FieldMode is the processing mode (standard/advanced/premium)
	FieldMode = "mode"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldUserID is the submitting user's ID
	FieldUserID = "user_id"
)

// Standard metric fields, attached at the log site for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldConfidence is a producer confidence value
	FieldConfidence = "confidence"
)
