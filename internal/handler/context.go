package handler

type ContextKey string

var (
	ComplaintCtx ContextKey = "complaint"
)
