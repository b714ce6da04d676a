package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldFeedID is the standardized structured logging key for feed identifiers.
	FieldFeedID = "feed_id"
	// FieldEpisodeID is the standardized structured logging key for episode identifiers.
	FieldEpisodeID = "episode_id"
	// FieldUserID is the standardized structured logging key for the acting or affected user.
	FieldUserID = "user_id"
	// FieldRequestID is the standardized structured logging key for request correlation identifiers.
	FieldRequestID = "request_id"
	// FieldDocument is the standardized structured logging key for document store names.
	FieldDocument = "document"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells an operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the apperr classification of a failure.
	FieldErrorKind = "error_kind"
	// FieldBytes holds a byte count; console output shows it in human units.
	FieldBytes = "bytes"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)
