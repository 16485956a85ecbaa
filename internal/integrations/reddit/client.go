package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"modmail-relay/internal/domain"
	"modmail-relay/internal/integrations/paramstore"
)

const (
	defaultBaseURL   = "https://oauth.reddit.com"
	defaultUserAgent = "modmail-relay/1.0"
)

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("reddit: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client reads modmail conversations from the Reddit API.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string

	tokenMu sync.Mutex
	token   string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if ua := strings.TrimSpace(userAgent); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a Client whose bearer token is read from SSM on first use
// and reused until the API rejects it.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("reddit: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("reddit: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		userAgent:   defaultUserAgent,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveToken returns the cached token, fetching it from SSM when none is
// cached. Failed fetches are not cached.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	token, err := fetchTokenFromParamStore(ctx, c.getter, c.tokenParameterName())
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// invalidateToken drops token if it is still the cached one.
func (c *Client) invalidateToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/reddit-token"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func conversationURL(baseURL, id string, markRead bool) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/api/mod/conversations/" + url.PathEscape(id) + "?markRead=" + strconv.FormatBool(markRead)
}

// GetConversation fetches a modmail conversation. id may carry the
// ModmailConversation_ prefix.
func (c *Client) GetConversation(ctx context.Context, id string, markRead bool) (domain.Conversation, error) {
	shortID := domain.ShortConversationID(id)
	if shortID == "" {
		return domain.Conversation{}, errors.New("reddit: conversation id must not be empty")
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return domain.Conversation{}, err
	}

	u := conversationURL(c.baseURL, shortID, markRead)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if reqErr != nil {
		return domain.Conversation{}, fmt.Errorf("reddit: create request: %w", reqErr)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	raw, err := c.doJSONRequest(req, u)
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			c.invalidateToken(token)
		}
		return domain.Conversation{}, fmt.Errorf("reddit: request failed: %w", err)
	}

	conv, err := parseConversation(raw)
	if err != nil {
		return domain.Conversation{}, err
	}
	if conv.ID == "" {
		conv.ID = shortID
	}
	return conv, nil
}

// parseConversation decodes a conversation response. The messages object is
// walked in document order so the last entry is the last key the API sent.
func parseConversation(raw []byte) (domain.Conversation, error) {
	if !gjson.ValidBytes(raw) {
		return domain.Conversation{}, errors.New("reddit: decode response: invalid JSON")
	}
	doc := gjson.ParseBytes(raw)
	meta := doc.Get("conversation")
	if !meta.IsObject() {
		return domain.Conversation{}, errors.New("reddit: decode response: missing conversation")
	}

	conv := domain.Conversation{
		ID:      meta.Get("id").String(),
		Subject: meta.Get("subject").String(),
	}
	doc.Get("messages").ForEach(func(key, value gjson.Result) bool {
		conv.Messages = append(conv.Messages, parseMessage(key.String(), value))
		return true
	})
	return conv, nil
}

func parseMessage(key string, v gjson.Result) domain.Message {
	id := v.Get("id").String()
	if id == "" {
		id = key
	}
	body := v.Get("bodyMarkdown")
	if !body.Exists() {
		body = v.Get("body")
	}
	author := v.Get("author")
	return domain.Message{
		ID:              id,
		AuthorName:      author.Get("name").String(),
		BodyMarkdown:    body.String(),
		ParticipatingAs: participatingAs(v, author),
	}
}

func participatingAs(msg, author gjson.Result) string {
	if role := msg.Get("participatingAs").String(); role != "" {
		return role
	}
	switch {
	case author.Get("isMod").Bool():
		return domain.RoleModerator
	case author.Get("isParticipant").Bool(), author.Get("isOp").Bool():
		return "participant_user"
	default:
		return ""
	}
}

func (c *Client) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchTokenFromParamStore(ctx context.Context, getter paramstore.Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("reddit: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("reddit: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("reddit: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("reddit: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("reddit: API token is empty")
	}
	return tp.Token, nil
}
