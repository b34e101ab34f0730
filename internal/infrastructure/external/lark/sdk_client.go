package lark

import (
	"context"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// Config holds Lark bot configuration
type Config struct {
	AppID     string
	AppSecret string

	// ReceiveIDType is one of chat_id, open_id, user_id, email
	ReceiveIDType string
	ReceiveID     string
}

// messageCreator is the slice of the IM API the notifier needs
type messageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// newMessageCreator builds an SDK client with token caching enabled
func newMessageCreator(cfg Config) messageCreator {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return client.Im.Message
}
