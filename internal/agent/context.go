package agent

import "context"

type contextKey int

const (
	analysisIDKey contextKey = iota
)

func ContextWithAnalysisID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, analysisIDKey, id)
}

func AnalysisIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(analysisIDKey).(string); ok {
		return v
	}
	return ""
}
