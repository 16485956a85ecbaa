package domain

// Format selects the payload schema posted to a webhook.
type Format string

const (
	FormatDiscord Format = "discord"
	FormatSlack   Format = "slack"
)

// ParseFormat maps a stored setting to a Format. Unknown or empty values fall
// back to Discord.
func ParseFormat(s string) Format {
	switch Format(s) {
	case FormatSlack:
		return FormatSlack
	default:
		return FormatDiscord
	}
}

// Destination is where a notification is delivered.
type Destination struct {
	URL    string
	Format Format
}

// Notification is the provider-agnostic shape of a relayed modmail message.
type Notification struct {
	Content    string
	Title      string
	URL        string
	AuthorName string
	AuthorURL  string
	Body       string
	FooterText string
	FooterIcon string
	Color      int
}

// Settings is the per-installation configuration.
type Settings struct {
	Subreddit  string
	WebhookURL string
	Format     Format
}
