package twiliosms

import (
	"context"
	"errors"
	"testing"
)

func TestNewClient_MissingCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestNewClient_OptionsOverrideEnv(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	client, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client")
	}
}

func TestNewClient_EnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtoken")
	if _, err := NewClient(); err != nil {
		t.Fatalf("expected env credentials to be used, got %v", err)
	}
}

func TestSendSMS_RequiresFields(t *testing.T) {
	client, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if err := client.SendSMS(context.Background(), "", "+61412345678", "hi"); err == nil {
		t.Error("expected error for missing from")
	}
	if err := client.SendSMS(context.Background(), "+61400000001", "", "hi"); err == nil {
		t.Error("expected error for missing to")
	}
	if err := client.SendSMS(context.Background(), "+61400000001", "+61412345678", ""); err == nil {
		t.Error("expected error for missing body")
	}
}

func TestMockClient_RecordsMessages(t *testing.T) {
	mock := NewMockClient()
	if err := mock.SendSMS(context.Background(), "+61400000001", "+61412345678", "hello"); err != nil {
		t.Fatalf("SendSMS() error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected one recorded message, got %d", len(mock.SentMessages))
	}
	got := mock.SentMessages[0]
	if got.From != "+61400000001" || got.To != "+61412345678" || got.Body != "hello" {
		t.Errorf("unexpected recorded message %+v", got)
	}
}

func TestMockClient_ConfiguredError(t *testing.T) {
	wantErr := errors.New("twilio down")
	mock := &MockClient{Err: wantErr}
	if err := mock.SendSMS(context.Background(), "a", "b", "c"); !errors.Is(err, wantErr) {
		t.Errorf("expected configured error, got %v", err)
	}
	if len(mock.SentMessages) != 0 {
		t.Error("failed send must not be recorded")
	}
}
