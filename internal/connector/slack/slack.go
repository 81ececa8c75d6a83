package slackconn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/maitre-io/maitre/internal/connector"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// Config holds Slack notifier configuration.
type Config struct {
	BotToken string // xoxb-... Bot User OAuth Token
	Channel  string // channel ID or name receiving floor events
	APIURL   string // optional override of the Web API base URL, ends with "/"
}

// Notifier posts floor events to a Slack channel.
type Notifier struct {
	api     *slack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Slack notifier. It does not contact Slack; call Check to
// verify the token.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Notifier{
		api:     slack.New(cfg.BotToken, opts...),
		channel: cfg.Channel,
		logger:  logger,
	}, nil
}

func (n *Notifier) Name() string { return "slack" }

// Check runs auth.test and logs the bot identity.
func (n *Notifier) Check(ctx context.Context) error {
	resp, err := n.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	n.logger.Info("slack bot authorized", "user", resp.User, "team", resp.Team)
	return nil
}

// Notify posts ev to the configured channel.
func (n *Notifier) Notify(ctx context.Context, ev protocol.Event) error {
	text := MarkdownToMrkdwn(connector.Format(ev))
	if _, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("slack: post %s: %w", ev.Type, err)
	}
	return nil
}

// MarkdownToMrkdwn converts the Markdown subset used by floor messages to
// Slack's mrkdwn: **bold** becomes *bold*, *italic* becomes _italic_ and
// ~~strike~~ becomes ~strike~. Code spans are left untouched.
func MarkdownToMrkdwn(md string) string {
	var b strings.Builder
	b.Grow(len(md))
	inCode := false
	for i := 0; i < len(md); i++ {
		ch := md[i]
		switch {
		case ch == '`':
			inCode = !inCode
			b.WriteByte(ch)
		case inCode:
			b.WriteByte(ch)
		case ch == '*' && i+1 < len(md) && md[i+1] == '*':
			b.WriteByte('*')
			i++
		case ch == '*':
			b.WriteByte('_')
		case ch == '~' && i+1 < len(md) && md[i+1] == '~':
			b.WriteByte('~')
			i++
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
