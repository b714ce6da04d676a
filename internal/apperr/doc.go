// Package apperr defines the error taxonomy shared by the storage, permission,
// feed, and serializer packages.
//
// Errors are tagged with one of the exported sentinel markers and wrapped with
// component/operation context, so callers branch with errors.Is while logs keep
// the full chain. Upload rejections additionally carry a structured reason so
// a caller can re-prompt without inspecting message text.
package apperr
