package notify

import "context"

// Notifier delivers alerts to wherever the office is watching.
type Notifier interface {
	// PostMessage sends a plain text message.
	PostMessage(ctx context.Context, text string) error
	// UploadFile uploads a file with an accompanying comment.
	UploadFile(ctx context.Context, path, comment string) error
}
