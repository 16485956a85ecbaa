package webhook

import (
	"fmt"

	"github.com/slack-go/slack"

	"modmail-relay/internal/domain"
)

// discordPayload follows the Discord execute-webhook body.
type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string        `json:"title"`
	URL         string        `json:"url,omitempty"`
	Author      discordAuthor `json:"author"`
	Description string        `json:"description"`
	Footer      discordFooter `json:"footer"`
	Color       int           `json:"color"`
}

type discordAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type discordFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

func discordPayloadFrom(n domain.Notification) discordPayload {
	return discordPayload{
		Content: n.Content,
		Embeds: []discordEmbed{{
			Title:       n.Title,
			URL:         n.URL,
			Author:      discordAuthor{Name: n.AuthorName, URL: n.AuthorURL},
			Description: n.Body,
			Footer:      discordFooter{Text: n.FooterText, IconURL: n.FooterIcon},
			Color:       n.Color,
		}},
	}
}

func slackMessageFrom(n domain.Notification) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Text: n.Content,
		Attachments: []slack.Attachment{{
			Color:      hexColor(n.Color),
			Title:      n.Title,
			TitleLink:  n.URL,
			AuthorName: n.AuthorName,
			AuthorLink: n.AuthorURL,
			Text:       n.Body,
			Footer:     n.FooterText,
			FooterIcon: n.FooterIcon,
			MarkdownIn: []string{"text"},
		}},
	}
}

func hexColor(c int) string {
	return fmt.Sprintf("#%06X", c&0xFFFFFF)
}
