package usecase

import (
	"strings"

	"modmail-relay/internal/domain"
)

const (
	notificationContent = "New Modmail received"
	modmailLinkBase     = "https://mod.reddit.com/mail/all/"
	profileLinkBase     = "https://www.reddit.com/u/"
	footerIconURL       = "https://styles.redditmedia.com/t5_5uplbt/styles/communityIcon_lb7qvrbnl0zc1.png"
	embedColor          = 5198938
	unknownValue        = "Unknown"
	noSubject           = "(no subject)"
)

func modmailLink(conversationID string) string {
	return modmailLinkBase + domain.ShortConversationID(conversationID)
}

func profileLink(author string) string {
	return profileLinkBase + author
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// relayedMessage is the subset of a message the notification is built from,
// with defaults applied.
type relayedMessage struct {
	id     string
	author string
	body   string
	role   string
}

func newRelayedMessage(m domain.Message) relayedMessage {
	return relayedMessage{
		id:     m.ID,
		author: orDefault(m.AuthorName, unknownValue),
		body:   m.BodyMarkdown,
		role:   orDefault(m.ParticipatingAs, unknownValue),
	}
}

func buildNotification(subject, link string, m relayedMessage) domain.Notification {
	return domain.Notification{
		Content:    notificationContent,
		Title:      orDefault(subject, noSubject),
		URL:        link,
		AuthorName: "u/" + m.author,
		AuthorURL:  profileLink(m.author),
		Body:       "**Body**:\n" + m.body,
		FooterText: "Participating As: " + m.role,
		FooterIcon: footerIconURL,
		Color:      embedColor,
	}
}
