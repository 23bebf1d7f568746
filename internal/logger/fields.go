package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldImageHash is the content fingerprint of the image being processed
	FieldImageHash = "image_hash"

	// FieldImageID is the persisted upload ID
	FieldImageID = "image_id"

	// FieldEmotion is the detected (post-gate) emotion label
	FieldEmotion = "emotion"

	// FieldArtifact names a lazily loaded artifact (model, catalog)
	FieldArtifact = "artifact"
)

// Metric fields, attached per log line for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldConfidence = "confidence"
)
