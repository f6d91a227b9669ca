package messaging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/pilyavetsb/SecretaryBot/internal/models"
)

// ConsoleService is a one-user chat over a terminal: every input line is a
// message, replies are printed in colour.
type ConsoleService struct {
	in        io.Reader
	out       io.Writer
	user      string
	botColor  *color.Color
	hintColor *color.Color
	responses chan models.Response
	receipts  chan models.Receipt
	done      chan struct{}

	writeMu sync.Mutex
	mu      sync.Mutex
	stopped bool
}

// NewConsoleService reads lines from in and writes replies to out. user is
// the sender identity of every line.
func NewConsoleService(in io.Reader, out io.Writer, user string) *ConsoleService {
	return &ConsoleService{
		in:        in,
		out:       out,
		user:      user,
		botColor:  color.New(color.FgCyan),
		hintColor: color.New(color.FgYellow),
		responses: make(chan models.Response, DefaultChannelBufferSize),
		receipts:  make(chan models.Receipt),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient accepts any non-empty identity.
func (s *ConsoleService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	return recipient, nil
}

// Start reads input lines until EOF or ctx cancellation. Responses and Done
// are closed when reading ends.
func (s *ConsoleService) Start(ctx context.Context) error {
	s.hintColor.Fprintln(s.out, "Напишите сообщение и нажмите Enter. Ctrl+D - выход.")
	go func() {
		defer close(s.done)
		defer close(s.responses)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case s.responses <- models.Response{From: s.user, Body: line, Time: time.Now().Unix()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("ConsoleService read failed", "error", err)
		}
	}()
	return nil
}

// Done is closed once the input is exhausted.
func (s *ConsoleService) Done() <-chan struct{} {
	return s.done
}

// Stop closes the receipts channel. It is safe to call more than once.
func (s *ConsoleService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	return nil
}

// SendMessage prints body as a bot reply.
func (s *ConsoleService) SendMessage(_ context.Context, to string, body string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.botColor.Fprint(s.out, "Бот: "); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.out, body)
	return err
}

// Receipts returns a channel that never carries events.
func (s *ConsoleService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel of typed lines.
func (s *ConsoleService) Responses() <-chan models.Response {
	return s.responses
}
