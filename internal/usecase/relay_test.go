package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"modmail-relay/internal/domain"
	"modmail-relay/internal/integrations/reddit"
	"modmail-relay/internal/integrations/webhook"
)

const testWebhook = "https://discord.com/api/webhooks/123/secret"

type mockParams struct {
	vals map[string]string
	err  error
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param %s: %w", name, domain.ErrNotFound)
	}
	return v, nil
}

func defaultParams() *mockParams {
	return &mockParams{vals: map[string]string{"/prefix/webhook": testWebhook}}
}

type mockModmail struct {
	conv    domain.Conversation
	err     error
	gotID   string
	gotRead bool
	calls   int
}

func (m *mockModmail) GetConversation(_ context.Context, id string, markRead bool) (domain.Conversation, error) {
	m.calls++
	m.gotID = id
	m.gotRead = markRead
	return m.conv, m.err
}

type mockNotifier struct {
	err   error
	sent  []domain.Notification
	dests []domain.Destination
}

func (m *mockNotifier) Send(_ context.Context, dest domain.Destination, n domain.Notification) error {
	m.dests = append(m.dests, dest)
	m.sent = append(m.sent, n)
	return m.err
}

type mockSettings struct {
	settings domain.Settings
	found    bool
	err      error
	gotSub   string
}

func (m *mockSettings) GetSettings(_ context.Context, subreddit string) (domain.Settings, bool, error) {
	m.gotSub = subreddit
	return m.settings, m.found, m.err
}

func conversationWith(msgs ...domain.Message) *mockModmail {
	return &mockModmail{conv: domain.Conversation{ID: "2abcd", Subject: "Ban appeal", Messages: msgs}}
}

func userMessage(id, author, body string) domain.Message {
	return domain.Message{ID: id, AuthorName: author, BodyMarkdown: body, ParticipatingAs: "participant_user"}
}

func newTestService(t *testing.T, p ParamGetter, mm ConversationReader, n Notifier, s SettingsReader) *RelayService {
	t.Helper()
	svc, err := NewRelayService(p, mm, n, s, "/prefix/")
	require.NoError(t, err)
	return svc
}

func expectRelayError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func event() domain.ModMailEvent {
	return domain.ModMailEvent{ConversationID: "ModmailConversation_2abcd", Subreddit: "golang"}
}

func TestNewRelayService_ValidatesDependencies(t *testing.T) {
	_, err := NewRelayService(nil, &mockModmail{}, &mockNotifier{}, nil, "/prefix")
	require.Error(t, err)

	_, err = NewRelayService(defaultParams(), nil, &mockNotifier{}, nil, "/prefix")
	require.Error(t, err)

	_, err = NewRelayService(defaultParams(), &mockModmail{}, nil, nil, "/prefix")
	require.Error(t, err)

	_, err = NewRelayService(defaultParams(), &mockModmail{}, &mockNotifier{}, nil, " ")
	require.Error(t, err)
}

func TestRelay_HappyPath(t *testing.T) {
	mm := conversationWith(userMessage("m1", "someone", "please unban me"))
	n := &mockNotifier{}
	svc := newTestService(t, defaultParams(), mm, n, nil)

	out, err := svc.Relay(context.Background(), event())
	require.NoError(t, err)
	require.Equal(t, StatusSent, out.Status)
	require.Equal(t, "m1", out.MessageID)
	require.Equal(t, "ModmailConversation_2abcd", mm.gotID)
	require.False(t, mm.gotRead)

	require.Len(t, n.sent, 1)
	require.Equal(t, domain.Destination{URL: testWebhook, Format: domain.FormatDiscord}, n.dests[0])
	require.Equal(t, domain.Notification{
		Content:    "New Modmail received",
		Title:      "Ban appeal",
		URL:        "https://mod.reddit.com/mail/all/2abcd",
		AuthorName: "u/someone",
		AuthorURL:  "https://www.reddit.com/u/someone",
		Body:       "**Body**:\nplease unban me",
		FooterText: "Participating As: participant_user",
		FooterIcon: footerIconURL,
		Color:      5198938,
	}, n.sent[0])
}

func TestRelay_SelectsLastMessageInOrder(t *testing.T) {
	mm := conversationWith(
		userMessage("m9", "first", "one"),
		userMessage("m1", "second", "two"),
		userMessage("m5", "third", "three"),
	)
	n := &mockNotifier{}
	svc := newTestService(t, defaultParams(), mm, n, nil)

	out, err := svc.Relay(context.Background(), event())
	require.NoError(t, err)
	require.Equal(t, "m5", out.MessageID)
	require.Len(t, n.sent, 1)
	require.Equal(t, "u/third", n.sent[0].AuthorName)
	require.Equal(t, "**Body**:\nthree", n.sent[0].Body)
}

func TestRelay_SkipsModeratorMessages(t *testing.T) {
	mm := conversationWith(
		userMessage("m1", "someone", "hi"),
		domain.Message{ID: "m2", AuthorName: "a_mod", BodyMarkdown: "reply", ParticipatingAs: "moderator"},
	)
	n := &mockNotifier{}
	svc := newTestService(t, defaultParams(), mm, n, nil)

	out, err := svc.Relay(context.Background(), event())
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "moderator", out.Role)
	require.Empty(t, n.sent)
}

func TestRelay_AppliesDefaults(t *testing.T) {
	mm := &mockModmail{conv: domain.Conversation{Messages: []domain.Message{{ID: "m1"}}}}
	n := &mockNotifier{}
	svc := newTestService(t, defaultParams(), mm, n, nil)

	_, err := svc.Relay(context.Background(), event())
	require.NoError(t, err)
	require.Len(t, n.sent, 1)
	require.Equal(t, "(no subject)", n.sent[0].Title)
	require.Equal(t, "u/Unknown", n.sent[0].AuthorName)
	require.Equal(t, "https://www.reddit.com/u/Unknown", n.sent[0].AuthorURL)
	require.Equal(t, "**Body**:\n", n.sent[0].Body)
	require.Equal(t, "Participating As: Unknown", n.sent[0].FooterText)
}

func TestRelay_MissingWebhook(t *testing.T) {
	cases := []struct {
		name   string
		params *mockParams
	}{
		{name: "parameter absent", params: &mockParams{vals: map[string]string{}}},
		{name: "parameter blank", params: &mockParams{vals: map[string]string{"/prefix/webhook": "  "}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mm := conversationWith(userMessage("m1", "someone", "hi"))
			n := &mockNotifier{}
			svc := newTestService(t, tc.params, mm, n, nil)

			_, err := svc.Relay(context.Background(), event())
			expectRelayError(t, err, ErrorConfigMissing, "webhook_not_configured")
			require.Zero(t, mm.calls)
			require.Empty(t, n.sent)
		})
	}
}

func TestRelay_InvalidWebhookURL(t *testing.T) {
	n := &mockNotifier{}
	p := &mockParams{vals: map[string]string{"/prefix/webhook": "discord.com/api/webhooks/1"}}
	svc := newTestService(t, p, conversationWith(userMessage("m1", "u", "b")), n, nil)

	_, err := svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorConfigInvalid, "webhook_url_invalid")
	require.Empty(t, n.sent)
}

func TestRelay_SSMError(t *testing.T) {
	svc := newTestService(t, &mockParams{err: errors.New("ssm unavailable")}, conversationWith(), &mockNotifier{}, nil)
	_, err := svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorInternal, "ssm_load_error")
}

func TestRelay_NoMessages(t *testing.T) {
	n := &mockNotifier{}
	svc := newTestService(t, defaultParams(), conversationWith(), n, nil)

	_, err := svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorNoMessages, "no_messages")
	require.Empty(t, n.sent)
}

func TestRelay_InvalidEvent(t *testing.T) {
	mm := conversationWith()
	svc := newTestService(t, defaultParams(), mm, &mockNotifier{}, nil)

	for _, id := range []string{"", "  ", "ModmailConversation_"} {
		_, err := svc.Relay(context.Background(), domain.ModMailEvent{ConversationID: id})
		expectRelayError(t, err, ErrorInvalidEvent, "empty_conversation_id")
	}
	require.Zero(t, mm.calls)
}

func TestRelay_ModmailErrors(t *testing.T) {
	svc := newTestService(t, defaultParams(), &mockModmail{err: &reddit.HTTPStatusError{StatusCode: http.StatusTooManyRequests}}, &mockNotifier{}, nil)
	_, err := svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorRateLimited, "modmail_rate_limited")

	svc = newTestService(t, defaultParams(), &mockModmail{err: &reddit.HTTPStatusError{StatusCode: http.StatusForbidden}}, &mockNotifier{}, nil)
	_, err = svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorUpstream, "modmail_fetch_error")
}

func TestRelay_WebhookErrors(t *testing.T) {
	mm := conversationWith(userMessage("m1", "someone", "hi"))

	n := &mockNotifier{err: &webhook.HTTPStatusError{StatusCode: http.StatusBadRequest}}
	svc := newTestService(t, defaultParams(), mm, n, nil)
	out, err := svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorUpstream, "webhook_error")
	require.Equal(t, "m1", out.MessageID)
	require.Len(t, n.sent, 1)

	n = &mockNotifier{err: &webhook.HTTPStatusError{StatusCode: http.StatusTooManyRequests}}
	svc = newTestService(t, defaultParams(), mm, n, nil)
	_, err = svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorRateLimited, "webhook_rate_limited")
}

func TestRelay_SubredditSettingsOverrideDefault(t *testing.T) {
	s := &mockSettings{found: true, settings: domain.Settings{WebhookURL: "https://hooks.slack.com/services/T/B/x", Format: domain.FormatSlack}}
	n := &mockNotifier{}
	svc := newTestService(t, &mockParams{err: errors.New("must not be called")}, conversationWith(userMessage("m1", "u", "b")), n, s)

	_, err := svc.Relay(context.Background(), event())
	require.NoError(t, err)
	require.Equal(t, "golang", s.gotSub)
	require.Equal(t, []domain.Destination{{URL: "https://hooks.slack.com/services/T/B/x", Format: domain.FormatSlack}}, n.dests)
}

func TestRelay_SubredditSettingsFallBackToDefault(t *testing.T) {
	for _, s := range []*mockSettings{{found: false}, {found: true, settings: domain.Settings{Format: domain.FormatSlack}}} {
		n := &mockNotifier{}
		svc := newTestService(t, defaultParams(), conversationWith(userMessage("m1", "u", "b")), n, s)

		_, err := svc.Relay(context.Background(), event())
		require.NoError(t, err)
		require.Equal(t, []domain.Destination{{URL: testWebhook, Format: domain.FormatDiscord}}, n.dests)
	}
}

func TestRelay_SettingsStoreError(t *testing.T) {
	n := &mockNotifier{}
	svc := newTestService(t, defaultParams(), conversationWith(userMessage("m1", "u", "b")), n, &mockSettings{err: errors.New("throttled")})

	_, err := svc.Relay(context.Background(), event())
	expectRelayError(t, err, ErrorInternal, "settings_load_error")
	require.Empty(t, n.sent)
}

func TestModmailLink(t *testing.T) {
	require.Equal(t, "https://mod.reddit.com/mail/all/2abcd", modmailLink("ModmailConversation_2abcd"))
	require.Equal(t, "https://mod.reddit.com/mail/all/2abcd", modmailLink("2abcd"))
}
