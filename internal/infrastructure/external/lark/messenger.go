package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// DefaultReceiveIDType targets a group chat
const DefaultReceiveIDType = "chat_id"

// Notifier implements port.Notifier by posting text messages to one Lark
// chat or user
type Notifier struct {
	messages      messageCreator
	receiveIDType string
	receiveID     string
	logger        *zap.Logger
}

// NewNotifier creates a notifier backed by the Lark SDK
func NewNotifier(cfg Config, logger *zap.Logger) (*Notifier, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark app_id and app_secret are required")
	}
	return newNotifier(newMessageCreator(cfg), cfg, logger)
}

func newNotifier(messages messageCreator, cfg Config, logger *zap.Logger) (*Notifier, error) {
	if cfg.ReceiveID == "" {
		return nil, fmt.Errorf("lark receive_id is required")
	}
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = DefaultReceiveIDType
	}
	return &Notifier{
		messages:      messages,
		receiveIDType: idType,
		receiveID:     cfg.ReceiveID,
		logger:        logger,
	}, nil
}

// Notify sends title and body as one text message
func (n *Notifier) Notify(ctx context.Context, title, body string) error {
	if title == "" && body == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": fmt.Sprintf("[%s]\n%s", title, body)})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(n.receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.receiveID).
			MsgType(larkIm.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.messages.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("receive_id", n.receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("receive_id", n.receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("title", title))
	return nil
}
