/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackOptions configures the Slack transport.
type SlackOptions struct {
	Token     string
	Channel   string
	Username  string
	IconEmoji string
}

// slackAPI is the slice of the Slack client the notifier uses. It exists so
// tests can substitute a recorder for the real API.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// slackNotifier delivers notifications as channel messages, one message per
// severity batch with an attachment per cluster.
type slackNotifier struct {
	api       slackAPI
	channel   string
	username  string
	iconEmoji string
}

// NewSlackNotifier creates a Notifier backed by the Slack Web API.
func NewSlackNotifier(opts SlackOptions) (Notifier, error) {
	if opts.Token == "" {
		return nil, errors.New("slack token is required")
	}
	if opts.Channel == "" {
		return nil, errors.New("slack channel is required")
	}
	if opts.Username == "" {
		opts.Username = "Cluster Janitor"
	}
	if opts.IconEmoji == "" {
		opts.IconEmoji = ":broom:"
	}

	return &slackNotifier{
		api:       slack.New(opts.Token),
		channel:   opts.Channel,
		username:  opts.Username,
		iconEmoji: opts.IconEmoji,
	}, nil
}

func (s *slackNotifier) SendExpiry(ctx context.Context, severity Severity, threshold float64, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	var header, color string
	switch severity {
	case SeverityCritical:
		header = fmt.Sprintf(":rotating_light: CRITICAL: %d clusters at or past %.0f%% of their lifetime",
			len(notifications), threshold)
		color = "danger"
	default:
		header = fmt.Sprintf(":warning: WARNING: %d clusters past %.0f%% of their lifetime",
			len(notifications), threshold)
		color = "warning"
	}

	attachments := make([]slack.Attachment, 0, len(notifications))
	for _, n := range notifications {
		attachments = append(attachments, clusterAttachment(n, color))
	}

	if err := s.post(ctx, header, attachments); err != nil {
		return fmt.Errorf("failed to send %s notification to Slack: %w", severity, err)
	}
	return nil
}

func (s *slackNotifier) SendDeleted(ctx context.Context, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	header := fmt.Sprintf(":wastebasket: Deleted %d expired clusters", len(notifications))
	attachments := make([]slack.Attachment, 0, len(notifications))
	for _, n := range notifications {
		attachments = append(attachments, clusterAttachment(n, "#439fe0"))
	}

	if err := s.post(ctx, header, attachments); err != nil {
		return fmt.Errorf("failed to send deletion notification to Slack: %w", err)
	}
	return nil
}

func (s *slackNotifier) post(ctx context.Context, text string, attachments []slack.Attachment) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAttachments(attachments...),
		slack.MsgOptionUsername(s.username),
		slack.MsgOptionIconEmoji(s.iconEmoji),
	)
	return err
}

func clusterAttachment(n Notification, color string) slack.Attachment {
	return slack.Attachment{
		Color: color,
		Title: n.Key(),
		Fields: []slack.AttachmentField{
			{Title: "Owner", Value: n.Owner, Short: true},
			{Title: "Expires", Value: n.Expires, Short: true},
			{Title: "Elapsed", Value: fmt.Sprintf("%.1f%%", n.ElapsedPercent), Short: true},
			{Title: "Remaining", Value: n.TimeRemaining, Short: true},
		},
	}
}
