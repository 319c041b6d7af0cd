package escalate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// LarkSender posts alert text into a Lark chat. The channel config carries
// the target under "receive_id": an oc_ chat id or an ou_ open id.
type LarkSender struct {
	client *lark.Client
	logger *slog.Logger
}

func NewLarkSender(log *slog.Logger, appID, appSecret string) *LarkSender {
	return &LarkSender{
		client: lark.NewClient(appID, appSecret),
		logger: log.With(slog.String("component", "escalate.lark")),
	}
}

func (s *LarkSender) Kind() string { return "lark" }

func (s *LarkSender) Send(ctx context.Context, ch Channel, text string) error {
	receiveID := strings.TrimSpace(ch.Config["receive_id"])
	if receiveID == "" {
		return fmt.Errorf("lark channel has no receive_id")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal message content: %w", err)
	}

	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(receiveID).
		MsgType(larkim.MsgTypeText).
		Content(string(content)).
		Uuid(uuid.NewString()).
		Build()
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(resolveReceiveType(receiveID)).
		Body(body).
		Build()

	resp, err := s.client.Im.V1.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send lark message: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("lark rejected message: code=%d msg=%s", resp.Code, resp.Msg)
	}
	s.logger.Debug("lark message sent", slog.String("receive_id", receiveID))
	return nil
}

func resolveReceiveType(receiveID string) string {
	if strings.HasPrefix(receiveID, "ou_") {
		return larkim.ReceiveIdTypeOpenId
	}
	return larkim.ReceiveIdTypeChatId
}
