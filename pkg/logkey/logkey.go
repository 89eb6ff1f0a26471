// Package logkey holds the structured log attribute keys shared across the app.
package logkey

const (
	TraceID = "trace_id"
	ERROR   = "error"
	UserID  = "user_id"
	OrderID = "order_id"
)
