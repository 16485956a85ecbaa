package domain

import "strings"

// ConversationIDPrefix is the thing-type prefix the platform puts on modmail
// conversation ids in trigger events.
const ConversationIDPrefix = "ModmailConversation_"

// RoleModerator is the participatingAs value for messages sent by the mod team.
const RoleModerator = "moderator"

// ModMailEvent is the trigger payload raised for new modmail activity.
type ModMailEvent struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
	Subreddit      string `json:"subreddit,omitempty"`
}

// Conversation is a modmail conversation with its messages in the order the
// API returned them.
type Conversation struct {
	ID       string
	Subject  string
	Messages []Message
}

// Message is a single modmail message.
type Message struct {
	ID              string
	AuthorName      string
	BodyMarkdown    string
	ParticipatingAs string
}

// Last returns the final message of the conversation.
func (c Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// ShortConversationID strips the thing-type prefix from a conversation id.
func ShortConversationID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), ConversationIDPrefix)
}
