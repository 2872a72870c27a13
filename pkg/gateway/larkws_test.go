package gateway

import (
	"context"
	"testing"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/tinyland-inc/larkbridge/pkg/normalize"
)

func strptr(s string) *string { return &s }

func larkWSEvent() *larkim.P2MessageReceiveV1 {
	content := `{"text":"hello from the long connection"}`
	return &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Message: &larkim.EventMessage{
				MessageId:   strptr("om_ws1"),
				ChatId:      strptr("oc_general"),
				MessageType: strptr("text"),
				Content:     &content,
				CreateTime:  strptr("1700000000000"),
			},
			Sender: &larkim.EventSender{
				SenderId:   &larkim.UserId{OpenId: strptr("ou_alice")},
				SenderType: strptr("user"),
			},
		},
	}
}

// A re-wrapped long-connection event must pass the normalizer's token check
// when a verification token is configured, since the connection itself is
// already authenticated.
func TestWrapV2Envelope_PassesTokenVerification(t *testing.T) {
	payload, err := wrapV2Envelope("secret-token", larkWSEvent())
	if err != nil {
		t.Fatal(err)
	}

	n := normalize.NewLark("secret-token", nil)
	res, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !res.IsMessage() {
		t.Fatal("expected a message")
	}
	if res.Message.SourceChatID != "oc_general" || res.Message.SenderID != "ou_alice" {
		t.Errorf("message = %+v", res.Message)
	}
	if res.Message.RawText != "hello from the long connection" {
		t.Errorf("text = %q", res.Message.RawText)
	}
}

func TestWrapV2Envelope_NoTokenConfigured(t *testing.T) {
	payload, err := wrapV2Envelope("", larkWSEvent())
	if err != nil {
		t.Fatal(err)
	}

	n := normalize.NewLark("", nil)
	res, err := n.Normalize(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsMessage() {
		t.Fatal("expected a message")
	}
}
