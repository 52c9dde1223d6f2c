package ports

import "context"

// Logger is the levelled logging contract used throughout the engine.
// Fields are optional key-value maps attached to the entry; implementations
// must tolerate a nil map.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error attaches err to the entry alongside the message.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
