package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"DailyDigest/internal/config"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// Telegram rejects longer message texts.
	maxMessageRunes = 4096
	chatParallelism = 4
)

// Notifier posts the digest to Telegram chats via the bot API. Recipients are
// chat identifiers.
type Notifier struct {
	botToken string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the bot token and API base.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	return &Notifier{
		botToken: cfg.BotToken,
		apiBase:  base,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Open validates the configuration; the bot API is stateless so the session
// only carries the client.
func (n *Notifier) Open(ctx context.Context) (ports.Session, error) {
	if n.botToken == "" || n.client == nil {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{n: n}, nil
}

type session struct {
	n *Notifier
}

// Send posts to every chat of the batch concurrently; the batch fails if any
// chat fails.
func (s *session) Send(ctx context.Context, chatIDs []string, subject string, body domain.RenderedMessage, attachments []domain.Attachment) error {
	text := messageText(subject, body.Text)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chatParallelism)

	errs := make([]error, len(chatIDs))
	for i, chatID := range chatIDs {
		g.Go(func() error {
			if err := s.n.sendMessage(gctx, chatID, text); err != nil {
				errs[i] = fmt.Errorf("chat %s: %w", chatID, err)
				return nil
			}
			for _, a := range attachments {
				if err := s.n.sendDocument(gctx, chatID, a); err != nil {
					errs[i] = fmt.Errorf("chat %s: attach %s: %w", chatID, a.Name, err)
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (s *session) Close() error { return nil }

func (n *Notifier) sendMessage(ctx context.Context, chatID, text string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.method("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return n.do(req)
}

func (n *Notifier) sendDocument(ctx context.Context, chatID string, a domain.Attachment) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", chatID); err != nil {
		return err
	}
	part, err := w.CreateFormFile("document", a.Name)
	if err != nil {
		return err
	}
	if _, err := part.Write(a.Data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.method("sendDocument"), &buf)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return n.do(req)
}

func (n *Notifier) do(req *http.Request) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

func (n *Notifier) method(name string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.apiBase, n.botToken, name)
}

func messageText(subject, text string) string {
	msg := strings.TrimSpace(subject + "\n\n" + text)
	if runes := []rune(msg); len(runes) > maxMessageRunes {
		msg = string(runes[:maxMessageRunes-3]) + "..."
	}
	return msg
}
