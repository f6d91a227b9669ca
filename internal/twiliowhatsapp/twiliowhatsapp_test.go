package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "+79261234567", "Привет"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := mock.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Body != "Привет" {
		t.Errorf("expected body %q, got %q", "Привет", msgs[0].Body)
	}
}

func TestMockClient_Error(t *testing.T) {
	mock := NewMockClient()
	mock.Err = errors.New("rate limited")
	if err := mock.SendMessage(context.Background(), "+79261234567", "Привет"); err == nil {
		t.Fatal("expected error")
	}
	if len(mock.Messages()) != 0 {
		t.Error("failed send must not be recorded")
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret")); !errors.Is(err, ErrMissingSender) {
		t.Errorf("expected ErrMissingSender, got %v", err)
	}
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret"), WithFromWhats("whatsapp:+10000000000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fromWhats != "whatsapp:+10000000000" {
		t.Errorf("fromWhats = %q", c.fromWhats)
	}
}

func TestOptsFromEnv(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "ACenv")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtoken")
	t.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+1999")

	got := OptsFromEnv(Opts{AccountSID: "ACopt"})
	if got.AccountSID != "ACopt" || got.AuthToken != "envtoken" || got.FromWhats != "whatsapp:+1999" {
		t.Errorf("unexpected opts: %+v", got)
	}
}

func TestSignatureValidatorRejectsForgery(t *testing.T) {
	v := NewSignatureValidator("secret")
	params := map[string]string{"From": "whatsapp:+79261234567", "Body": "привет"}
	if v.Validate("https://bot.example.com/twilio/whatsapp", params, "forged") {
		t.Error("forged signature accepted")
	}
}
