package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "bridge", "http", "mcp", "cli"
	RequestIDKey contextKey = "kit_request_id"
	SessionIDKey contextKey = "kit_session_id"
	TabIDKey     contextKey = "kit_tab_id"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "cli"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

// WithTabID records the tab a bridge message was sent from.
func WithTabID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TabIDKey, id)
}

func GetTabID(ctx context.Context) string {
	v, _ := ctx.Value(TabIDKey).(string)
	return v
}
