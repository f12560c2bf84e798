package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slack-go/slack"

	"github.com/AddisonG/timtamcam/internal/debug"
)

// Slack posts messages and uploads files to a single channel.
type Slack struct {
	client    *slack.Client
	channelID string
}

// NewSlack creates a Slack notifier for the given channel.
// The token must be a bot token (starts with "xoxb").
func NewSlack(token, channelID string) (*Slack, error) {
	if !strings.HasPrefix(token, "xoxb") {
		return nil, fmt.Errorf("notify: valid bot token needed - must start with 'xoxb'")
	}
	return &Slack{
		client:    slack.New(token),
		channelID: channelID,
	}, nil
}

// Join makes sure the bot is a member of the channel, so uploads
// don't fail with not_in_channel.
func (s *Slack) Join(ctx context.Context) error {
	_, _, _, err := s.client.JoinConversationContext(ctx, s.channelID)
	if err != nil {
		return fmt.Errorf("notify: join channel %s: %w", s.channelID, err)
	}
	debug.Verbose("Slack: joined channel %s", s.channelID)
	return nil
}

// PostMessage sends a plain text message to the channel.
func (s *Slack) PostMessage(ctx context.Context, text string) error {
	debug.Live("Slack: sending message: %q", text)
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: post message: %w", err)
	}
	return nil
}

// UploadFile uploads a file to the channel with an initial comment.
func (s *Slack) UploadFile(ctx context.Context, path, comment string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("notify: stat upload: %w", err)
	}

	debug.Live("Slack: uploading %s (%d bytes)", path, info.Size())
	_, err = s.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:        s.channelID,
		File:           path,
		Filename:       filepath.Base(path),
		FileSize:       int(info.Size()),
		Title:          "Tim Tam Thief",
		InitialComment: comment,
	})
	if err != nil {
		return fmt.Errorf("notify: upload file: %w", err)
	}
	return nil
}
