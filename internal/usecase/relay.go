package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"modmail-relay/internal/domain"
)

const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type ConversationReader interface {
	GetConversation(ctx context.Context, id string, markRead bool) (domain.Conversation, error)
}

type Notifier interface {
	Send(ctx context.Context, dest domain.Destination, n domain.Notification) error
}

// SettingsReader looks up per-subreddit overrides of the default destination.
type SettingsReader interface {
	GetSettings(ctx context.Context, subreddit string) (domain.Settings, bool, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// RelayService forwards the newest message of a modmail conversation to a
// chat webhook.
type RelayService struct {
	params      ParamGetter
	modmail     ConversationReader
	notifier    Notifier
	settings    SettingsReader
	paramPrefix string
}

type RelayOutput struct {
	Status    string
	MessageID string
	Author    string
	Role      string
}

// NewRelayService builds a RelayService. settings may be nil, in which case
// only the SSM default destination is used.
func NewRelayService(p ParamGetter, modmail ConversationReader, notifier Notifier, settings SettingsReader, paramPrefix string) (*RelayService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if modmail == nil {
		return nil, errors.New("usecase: modmail reader must not be nil")
	}
	if notifier == nil {
		return nil, errors.New("usecase: notifier must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &RelayService{
		params:      p,
		modmail:     modmail,
		notifier:    notifier,
		settings:    settings,
		paramPrefix: paramPrefix,
	}, nil
}

// Relay handles one modmail event. Messages whose author participates as a
// moderator are skipped without error.
func (s *RelayService) Relay(ctx context.Context, ev domain.ModMailEvent) (RelayOutput, error) {
	convID := strings.TrimSpace(ev.ConversationID)
	if domain.ShortConversationID(convID) == "" {
		return RelayOutput{}, newError(ErrorInvalidEvent, "empty_conversation_id", nil)
	}
	var out RelayOutput

	dest, err := s.resolveDestination(ctx, ev.Subreddit)
	if err != nil {
		return out, err
	}

	link := modmailLink(convID)
	conv, err := s.modmail.GetConversation(ctx, convID, false)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return out, newError(ErrorRateLimited, "modmail_rate_limited", err)
		}
		return out, newError(ErrorUpstream, "modmail_fetch_error", err)
	}

	last, ok := conv.Last()
	if !ok {
		return out, newError(ErrorNoMessages, "no_messages", nil)
	}
	msg := newRelayedMessage(last)
	out.MessageID = msg.id
	out.Author = msg.author
	out.Role = msg.role

	if msg.role == domain.RoleModerator {
		out.Status = StatusSkipped
		return out, nil
	}

	if err := s.notifier.Send(ctx, dest, buildNotification(conv.Subject, link, msg)); err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return out, newError(ErrorRateLimited, "webhook_rate_limited", err)
		}
		return out, newError(ErrorUpstream, "webhook_error", err)
	}
	out.Status = StatusSent
	return out, nil
}

// resolveDestination reads the webhook setting. A per-subreddit override with a
// URL wins over the SSM default.
func (s *RelayService) resolveDestination(ctx context.Context, subreddit string) (domain.Destination, error) {
	if s.settings != nil && strings.TrimSpace(subreddit) != "" {
		settings, found, err := s.settings.GetSettings(ctx, subreddit)
		if err != nil {
			return domain.Destination{}, newError(ErrorInternal, "settings_load_error", err)
		}
		if found && settings.WebhookURL != "" {
			return validatedDestination(settings.WebhookURL, settings.Format)
		}
	}

	raw, err := s.params.GetParameter(ctx, s.webhookParameterName())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Destination{}, newError(ErrorConfigMissing, "webhook_not_configured", err)
		}
		return domain.Destination{}, newError(ErrorInternal, "ssm_load_error", err)
	}
	if strings.TrimSpace(raw) == "" {
		return domain.Destination{}, newError(ErrorConfigMissing, "webhook_not_configured", nil)
	}
	return validatedDestination(raw, domain.FormatDiscord)
}

func (s *RelayService) webhookParameterName() string {
	return s.paramPrefix + "/webhook"
}

func validatedDestination(raw string, format domain.Format) (domain.Destination, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return domain.Destination{}, newError(ErrorConfigInvalid, "webhook_url_invalid", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Destination{}, newError(ErrorConfigInvalid, "webhook_url_invalid", fmt.Errorf("webhook URL must be absolute http(s), got scheme %q", u.Scheme))
	}
	return domain.Destination{URL: raw, Format: format}, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
