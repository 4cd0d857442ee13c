// Package api defines the error taxonomy and JSON error envelope shared
// by the pipeline and the audit read API. Callers see exactly one of
// 401, 403, 429, or the business handler's own outcome; the mapping from
// error type to HTTP status lives here.
package api
