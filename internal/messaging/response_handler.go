package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pilyavetsb/SecretaryBot/internal/bot"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// TurnHandler processes one inbound activity. *bot.Bot implements it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, activity models.Activity, sender dialog.Sender) error
}

// ReceiptRecorder stores transport receipts.
type ReceiptRecorder interface {
	AddReceipt(r models.Receipt) error
}

// DefaultConcurrency is how many senders ResponseHandler serves at once.
const DefaultConcurrency = 16

// ResponseHandler feeds the messages of one Service to the bot and sends the
// replies back through the same Service. Different senders are served
// concurrently; messages of one sender are handled in arrival order.
type ResponseHandler struct {
	channelID   string
	handler     TurnHandler
	msgService  Service
	receipts    ReceiptRecorder
	concurrency int

	mu sync.Mutex
	// pending holds messages waiting behind an in-flight turn of the same sender
	pending map[string][]models.Response
}

// HandlerOption configures a ResponseHandler.
type HandlerOption func(*ResponseHandler)

// WithReceiptRecorder stores the receipts the service reports.
func WithReceiptRecorder(r ReceiptRecorder) HandlerOption {
	return func(rh *ResponseHandler) {
		rh.receipts = r
	}
}

// WithConcurrency limits how many senders are served at once.
func WithConcurrency(n int) HandlerOption {
	return func(rh *ResponseHandler) {
		rh.concurrency = n
	}
}

// NewResponseHandler creates a handler for msgService. channelID names the
// transport in conversation ids ("whatsapp", "twilio", "console").
func NewResponseHandler(channelID string, handler TurnHandler, msgService Service, opts ...HandlerOption) *ResponseHandler {
	rh := &ResponseHandler{
		channelID:   channelID,
		handler:     handler,
		msgService:  msgService,
		concurrency: DefaultConcurrency,
		pending:     make(map[string][]models.Response),
	}
	for _, opt := range opts {
		opt(rh)
	}
	if rh.concurrency <= 0 {
		rh.concurrency = DefaultConcurrency
	}
	return rh
}

// ProcessResponse runs one inbound message through the bot.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	canonicalFrom, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("ResponseHandler ProcessResponse validation failed", "error", err, "from", response.From)
		return fmt.Errorf("invalid sender: %w", err)
	}
	response.From = canonicalFrom

	activity := models.ActivityFromResponse(rh.channelID, response)
	sender := &serviceSender{svc: rh.msgService, to: canonicalFrom}
	slog.Debug("ResponseHandler processing response", "conversationID", activity.ConversationID, "body_length", len(response.Body))

	err = rh.handler.HandleTurn(ctx, activity, sender)
	if errors.Is(err, bot.ErrDuplicateActivity) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("handle turn: %w", err)
	}
	return nil
}

// Run processes responses and receipts until ctx is cancelled or the
// service closes its responses channel. It returns once every turn it
// started has finished.
func (rh *ResponseHandler) Run(ctx context.Context) error {
	slog.Info("ResponseHandler started", "channel", rh.channelID, "concurrency", rh.concurrency)
	defer slog.Info("ResponseHandler stopped", "channel", rh.channelID)

	var g errgroup.Group
	g.SetLimit(rh.concurrency)
	defer g.Wait()

	responses := rh.msgService.Responses()
	receipts := rh.msgService.Receipts()
	for {
		select {
		case response, ok := <-responses:
			if !ok {
				return nil
			}
			rh.dispatch(ctx, &g, response)
		case receipt, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			rh.recordReceipt(receipt)
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch queues response behind an in-flight turn of its sender, or starts
// a worker for the sender. g.Go blocks while the concurrency limit is reached.
func (rh *ResponseHandler) dispatch(ctx context.Context, g *errgroup.Group, response models.Response) {
	key := response.From
	rh.mu.Lock()
	if queue, busy := rh.pending[key]; busy {
		rh.pending[key] = append(queue, response)
		rh.mu.Unlock()
		return
	}
	rh.pending[key] = nil
	rh.mu.Unlock()

	g.Go(func() error {
		rh.drain(ctx, key, response)
		return nil
	})
}

// drain handles response and then whatever queued up for the same sender.
func (rh *ResponseHandler) drain(ctx context.Context, key string, response models.Response) {
	for {
		if ctx.Err() != nil {
			slog.Warn("ResponseHandler dropped response on shutdown", "from", response.From)
		} else if err := rh.ProcessResponse(ctx, response); err != nil {
			slog.Error("ResponseHandler failed to process response", "error", err, "from", response.From)
		}

		rh.mu.Lock()
		queue := rh.pending[key]
		if len(queue) == 0 {
			delete(rh.pending, key)
			rh.mu.Unlock()
			return
		}
		response, rh.pending[key] = queue[0], queue[1:]
		rh.mu.Unlock()
	}
}

// Start runs Run in the background.
func (rh *ResponseHandler) Start(ctx context.Context) {
	go func() {
		_ = rh.Run(ctx)
	}()
}

func (rh *ResponseHandler) recordReceipt(r models.Receipt) {
	if rh.receipts == nil {
		slog.Debug("ResponseHandler receipt", "to", r.To, "status", r.Status)
		return
	}
	if err := rh.receipts.AddReceipt(r); err != nil {
		slog.Warn("ResponseHandler failed to store receipt", "error", err, "to", r.To)
	}
}

// serviceSender renders bot messages as text for a Service.
type serviceSender struct {
	svc Service
	to  string
}

func (s *serviceSender) Send(ctx context.Context, msgs ...models.Message) error {
	for _, m := range msgs {
		body := strings.TrimSpace(m.Render())
		if body == "" {
			continue
		}
		if err := s.svc.SendMessage(ctx, s.to, body); err != nil {
			return fmt.Errorf("send to %s: %w", s.to, err)
		}
	}
	return nil
}
