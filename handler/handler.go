package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"modmail-relay/internal/domain"
	"modmail-relay/internal/usecase"
)

const statusFailed = "failed"

// Relayer is the use case the handler drives.
type Relayer interface {
	Relay(ctx context.Context, ev domain.ModMailEvent) (usecase.RelayOutput, error)
}

// Result is returned to direct invokers. The runtime never sees an error, so
// failed events are not redelivered.
type Result struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
	Error          string `json:"error,omitempty"`
	CorrelationID  string `json:"correlationId"`
}

type Handler struct {
	relay Relayer
	log   *slog.Logger
}

// NewHandler wires a Handler. A nil logger means slog.Default().
func NewHandler(r Relayer, logger *slog.Logger) (*Handler, error) {
	if r == nil {
		return nil, errors.New("handler: relayer must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{relay: r, log: logger}, nil
}

// Handle processes one modmail trigger, either a bare event or an EventBridge
// envelope carrying it in detail.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (res Result, err error) {
	correlationID := correlationIDFrom(ctx)
	log := h.log.With("correlation_id", correlationID)
	res = Result{CorrelationID: correlationID}

	defer func() {
		if r := recover(); r != nil {
			log.Error("modmail relay panicked", "panic", fmt.Sprint(r))
			res.Status = statusFailed
			res.Error = string(usecase.ErrorInternal)
			err = nil
		}
	}()

	ev, decErr := decodeEvent(raw)
	if decErr != nil {
		log.Error("invalid modmail event", "err", decErr)
		res.Status = statusFailed
		res.Error = string(usecase.ErrorInvalidEvent)
		return res, nil
	}
	res.ConversationID = ev.ConversationID
	log = log.With("conversation_id", ev.ConversationID, "subreddit", ev.Subreddit)

	out, relayErr := h.relay.Relay(ctx, ev)
	res.MessageID = out.MessageID
	if relayErr != nil {
		code, reason := errorCode(relayErr)
		log.Error("modmail relay failed", "code", code, "reason", reason, "message_id", out.MessageID, "err", relayErr)
		res.Status = statusFailed
		res.Error = string(code)
		return res, nil
	}

	res.Status = out.Status
	switch out.Status {
	case usecase.StatusSkipped:
		log.Info("skipped modmail from moderator", "message_id", out.MessageID, "author", out.Author)
	default:
		log.Info("modmail relayed", "message_id", out.MessageID, "author", out.Author, "participating_as", out.Role)
	}
	return res, nil
}

func decodeEvent(raw json.RawMessage) (domain.ModMailEvent, error) {
	var envelope events.CloudWatchEvent
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.ModMailEvent{}, fmt.Errorf("handler: decode event: %w", err)
	}
	payload := []byte(raw)
	if envelope.DetailType != "" && len(envelope.Detail) > 0 {
		payload = envelope.Detail
	}

	var ev domain.ModMailEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.ModMailEvent{}, fmt.Errorf("handler: decode modmail event: %w", err)
	}
	return ev, nil
}

func errorCode(err error) (usecase.ErrorCode, string) {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return ucErr.Code, ucErr.Reason
	}
	return usecase.ErrorInternal, "unexpected_error"
}

func correlationIDFrom(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}
