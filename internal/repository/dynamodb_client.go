package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"modmail-relay/internal/domain"
)

const skSettings = "SETTINGS"

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Client reads per-subreddit installation settings from a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// subPK returns the partition key for a subreddit. Subreddit names are case
// insensitive.
func subPK(subreddit string) string {
	return "SUB#" + strings.ToLower(strings.TrimSpace(subreddit))
}

// GetSettings returns the settings stored for subreddit. found is false when no
// item exists.
func (c *Client) GetSettings(ctx context.Context, subreddit string) (domain.Settings, bool, error) {
	if strings.TrimSpace(subreddit) == "" {
		return domain.Settings{}, false, errors.New("repository: GetSettings: subreddit is required")
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: subPK(subreddit)},
			"SK": &types.AttributeValueMemberS{Value: skSettings},
		},
	})
	if err != nil {
		return domain.Settings{}, false, fmt.Errorf("repository: GetSettings get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Settings{}, false, nil
	}

	settings, err := itemToSettings(out.Item)
	if err != nil {
		return domain.Settings{}, false, fmt.Errorf("repository: GetSettings decode: %w", err)
	}
	settings.Subreddit = subreddit
	return settings, true, nil
}

func itemToSettings(item map[string]types.AttributeValue) (domain.Settings, error) {
	webhookURL, err := strAttr(item, "webhookUrl")
	if err != nil {
		return domain.Settings{}, err
	}
	format, _ := strAttr(item, "format") // allow empty

	return domain.Settings{
		WebhookURL: strings.TrimSpace(webhookURL),
		Format:     domain.ParseFormat(strings.ToLower(strings.TrimSpace(format))),
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
