package messaging

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/pilyavetsb/SecretaryBot/internal/bot"
	"github.com/pilyavetsb/SecretaryBot/internal/config"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/dialogs"
	"github.com/pilyavetsb/SecretaryBot/internal/directory"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/quotes"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
	"github.com/pilyavetsb/SecretaryBot/internal/twiliowhatsapp"
	"github.com/pilyavetsb/SecretaryBot/internal/whatsapp"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Compile-time checks that every transport implements Service.
var (
	_ Service = (*WhatsAppService)(nil)
	_ Service = (*TwilioService)(nil)
	_ Service = (*ConsoleService)(nil)
)

func TestCanonicalPhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+7 (926) 123-45-67", "79261234567", false},
		{"79261234567", "79261234567", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, tt := range tests {
		got, err := canonicalPhone(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("canonicalPhone(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("canonicalPhone(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestTwilioCanonicalizesToE164(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	defer svc.Stop()
	got, err := svc.ValidateAndCanonicalizeRecipient("whatsapp:+79261234567")
	if err != nil || got != "+79261234567" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestWhatsAppServiceSendAndStop(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if err := svc.SendMessage(ctx, "+7 926 123-45-67", "привет"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].To != "79261234567" {
		t.Fatalf("unexpected messages: %+v", sent)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if _, ok := <-svc.Responses(); ok {
		t.Error("expected responses channel closed")
	}
	if _, ok := <-svc.Receipts(); ok {
		t.Error("expected receipts channel closed")
	}
	if err := svc.SendMessage(ctx, "79261234567", "ещё"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func postWebhook(svc *TwilioService, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/twilio/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	rec := httptest.NewRecorder()
	svc.TwilioWebhookHandler(rec, req)
	return rec
}

func TestTwilioWebhook(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	defer svc.Stop()

	rec := postWebhook(svc, url.Values{
		"From":       {"whatsapp:+79261234567"},
		"Body":       {"привет"},
		"MessageSid": {"SM123"},
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	select {
	case r := <-svc.Responses():
		if r.From != "+79261234567" || r.Body != "привет" || r.ID != "SM123" {
			t.Errorf("unexpected response: %+v", r)
		}
	default:
		t.Fatal("expected an inbound response")
	}

	rec = postWebhook(svc, url.Values{"From": {"whatsapp:+79261234567"}}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing body, got %d", rec.Code)
	}
}

func TestTwilioWebhookRejectsBadSignature(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient(),
		WithSignatureCheck("secret", "https://bot.example.com/twilio/whatsapp"))
	defer svc.Stop()

	rec := postWebhook(svc, url.Values{"From": {"whatsapp:+79261234567"}, "Body": {"привет"}}, "forged")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	select {
	case r := <-svc.Responses():
		t.Errorf("unexpected response: %+v", r)
	default:
	}
}

func TestServiceSenderRendersMessages(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)
	defer svc.Stop()

	s := &serviceSender{svc: svc, to: "+79261234567"}
	err := s.Send(context.Background(),
		models.Message{Text: "Выберите", Choices: []string{"Да", "Нет"}, Style: models.ListStyleList},
		models.CardMessage(models.Card{Fallback: "карточка"}),
		models.Message{},
	)
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	msgs := mock.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %+v", msgs)
	}
	if msgs[0].Body != "Выберите\n\n• Да\n• Нет" {
		t.Errorf("unexpected body %q", msgs[0].Body)
	}
	if msgs[1].Body != "карточка" {
		t.Errorf("unexpected body %q", msgs[1].Body)
	}
}

func newBot(t *testing.T) *bot.Bot {
	t.Helper()
	st := store.NewInMemoryStore()
	set, err := dialogs.NewSet(dialogs.Deps{
		Config:    config.DefaultConfig(),
		Directory: directory.NewMockClient(),
		Quotes:    quotes.StaticSource{Err: errors.New("offline")},
		Profiles:  bot.NewStoreBasedStateManager(st),
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	b, err := bot.New(set, st)
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	return b
}

func TestProcessResponseRunsBot(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	defer svc.Stop()
	rh := NewResponseHandler("whatsapp", newBot(t), svc)
	ctx := context.Background()

	if err := rh.ProcessResponse(ctx, models.Response{ID: "wa-1", From: "79261234567", Body: "привет"}); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected menu, got %+v", sent)
	}
	if !strings.Contains(sent[0].Body, "• Полезные ссылки") {
		t.Errorf("menu not rendered as a list: %q", sent[0].Body)
	}

	// redelivery of the same message is ignored
	if err := rh.ProcessResponse(ctx, models.Response{ID: "wa-1", From: "79261234567", Body: "привет"}); err != nil {
		t.Fatalf("ProcessResponse duplicate: %v", err)
	}
	if len(mock.Sent()) != 1 {
		t.Errorf("duplicate produced replies: %+v", mock.Sent())
	}

	if err := rh.ProcessResponse(ctx, models.Response{ID: "wa-2", From: "79261234567", Body: "завершить"}); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	sent = mock.Sent()
	if got := sent[len(sent)-1].Body; got != dialogs.FarewellText {
		t.Errorf("expected farewell, got %q", got)
	}

	if err := rh.ProcessResponse(ctx, models.Response{From: "", Body: "x"}); err == nil {
		t.Error("expected error for empty sender")
	}
}

type fakeService struct {
	responses chan models.Response
	receipts  chan models.Receipt
	mu        sync.Mutex
	sent      []string
}

func newFakeService() *fakeService {
	return &fakeService{responses: make(chan models.Response, 4), receipts: make(chan models.Receipt, 4)}
}

func (f *fakeService) ValidateAndCanonicalizeRecipient(r string) (string, error) { return r, nil }
func (f *fakeService) Start(context.Context) error                               { return nil }
func (f *fakeService) Stop() error                                               { return nil }
func (f *fakeService) Receipts() <-chan models.Receipt                           { return f.receipts }
func (f *fakeService) Responses() <-chan models.Response                         { return f.responses }
func (f *fakeService) SendMessage(_ context.Context, _ string, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return nil
}

type recordingHandler struct {
	mu         sync.Mutex
	activities []models.Activity
}

func (h *recordingHandler) HandleTurn(ctx context.Context, a models.Activity, s dialog.Sender) error {
	h.mu.Lock()
	h.activities = append(h.activities, a)
	h.mu.Unlock()
	return s.Send(ctx, models.TextMessage("эхо: "+a.Text))
}

type receiptSink struct {
	mu       sync.Mutex
	receipts []models.Receipt
}

func (r *receiptSink) AddReceipt(rc models.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, rc)
	return nil
}

func (r *receiptSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.receipts)
}

func TestRunProcessesUntilChannelCloses(t *testing.T) {
	svc := newFakeService()
	h := &recordingHandler{}
	sink := &receiptSink{}
	rh := NewResponseHandler("test", h, svc, WithReceiptRecorder(sink))

	svc.receipts <- models.Receipt{To: "u1", Status: models.MessageStatusRead}
	close(svc.receipts)
	svc.responses <- models.Response{From: "u1", Body: "раз"}
	svc.responses <- models.Response{From: "u1", Body: "два"}

	done := make(chan error)
	go func() { done <- rh.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// buffered messages are still delivered after close
	close(svc.responses)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if len(h.activities) != 2 || h.activities[0].ConversationID != "test:u1" {
		t.Errorf("unexpected activities: %+v", h.activities)
	}
	if strings.Join(svc.sent, "|") != "эхо: раз|эхо: два" {
		t.Errorf("unexpected replies: %v", svc.sent)
	}
	if sink.count() != 1 {
		t.Errorf("expected one stored receipt, got %+v", sink.receipts)
	}
}

// gatedHandler holds the turns of one sender until release is closed.
type gatedHandler struct {
	gated   string
	release chan struct{}
	handled chan string
}

func (h *gatedHandler) HandleTurn(_ context.Context, a models.Activity, _ dialog.Sender) error {
	if a.From.ID == h.gated {
		<-h.release
	}
	h.handled <- a.From.ID + ":" + a.Text
	return nil
}

func runInBackground(t *testing.T, rh *ResponseHandler, svc *fakeService) func() {
	t.Helper()
	done := make(chan error)
	go func() { done <- rh.Run(context.Background()) }()
	return func() {
		t.Helper()
		close(svc.responses)
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")
		}
	}
}

func TestRunSlowSenderDoesNotBlockOthers(t *testing.T) {
	svc := newFakeService()
	h := &gatedHandler{gated: "111111", release: make(chan struct{}), handled: make(chan string, 4)}
	stop := runInBackground(t, NewResponseHandler("test", h, svc), svc)

	svc.responses <- models.Response{From: "111111", Body: "медленно"}
	svc.responses <- models.Response{From: "111111", Body: "потом"}
	svc.responses <- models.Response{From: "222222", Body: "быстро"}

	select {
	case got := <-h.handled:
		if got != "222222:быстро" {
			t.Errorf("expected the second sender first, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second sender was not served while the first one was in flight")
	}

	close(h.release)
	if a, b := <-h.handled, <-h.handled; a != "111111:медленно" || b != "111111:потом" {
		t.Errorf("messages of one sender out of order: %q, %q", a, b)
	}
	stop()
}

func TestRunConcurrencyLimit(t *testing.T) {
	svc := newFakeService()
	h := &gatedHandler{gated: "111111", release: make(chan struct{}), handled: make(chan string, 4)}
	stop := runInBackground(t, NewResponseHandler("test", h, svc, WithConcurrency(1)), svc)

	svc.responses <- models.Response{From: "111111", Body: "первый"}
	svc.responses <- models.Response{From: "222222", Body: "второй"}

	select {
	case got := <-h.handled:
		t.Fatalf("%q handled beyond the concurrency limit", got)
	case <-time.After(50 * time.Millisecond):
	}
	close(h.release)
	if a, b := <-h.handled, <-h.handled; a != "111111:первый" || b != "222222:второй" {
		t.Errorf("unexpected order: %q, %q", a, b)
	}
	stop()
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newFakeService()
	rh := NewResponseHandler("test", &recordingHandler{}, svc)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- rh.Run(ctx) }()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestConsoleService(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(strings.NewReader("привет\n\n   \nпока\n"), &out, "console-user")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []string
	for len(got) < 2 {
		select {
		case r := <-svc.Responses():
			if r.From != "console-user" {
				t.Errorf("unexpected sender %q", r.From)
			}
			got = append(got, r.Body)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	<-svc.Done()
	if strings.Join(got, "|") != "привет|пока" {
		t.Errorf("unexpected lines: %v", got)
	}

	if err := svc.SendMessage(ctx, "console-user", "здравствуйте"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !strings.Contains(out.String(), "здравствуйте") || !strings.Contains(out.String(), "Бот: ") {
		t.Errorf("unexpected output %q", out.String())
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
