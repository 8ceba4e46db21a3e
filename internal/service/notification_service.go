package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/events"
	"github.com/spec-kit/contacts-service/internal/mail"
	"github.com/spec-kit/contacts-service/internal/observability"
)

// NotificationConfig carries the link targets used in outgoing mail.
type NotificationConfig struct {
	FrontendURL string
	SendTimeout time.Duration
}

// NotificationService turns lifecycle events into transactional email.
type NotificationService struct {
	dispatcher events.Dispatcher
	tokens     *auth.TokenManager
	renderer   *mail.Renderer
	sender     mail.Sender
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(
	dispatcher events.Dispatcher,
	tokens *auth.TokenManager,
	renderer *mail.Renderer,
	sender mail.Sender,
	logger *zap.Logger,
	metrics *observability.Metrics,
	cfg NotificationConfig,
) *NotificationService {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &NotificationService{
		dispatcher: dispatcher,
		tokens:     tokens,
		renderer:   renderer,
		sender:     sender,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventConfirmationEmailRequested, n.handleConfirmationRequested)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
}

func (n *NotificationService) handleConfirmationRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ConfirmationEmailPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	token, exp, err := n.tokens.IssueEmailToken(payload.Email)
	if err != nil {
		return fmt.Errorf("issue email token: %w", err)
	}
	link := strings.TrimRight(payload.BaseURL, "/") + "/auth/confirmed_email/" + url.PathEscape(token)

	return n.send(ctx, payload.Email, mail.TemplateVerifyEmail, map[string]any{
		"Username":  payload.Username,
		"Link":      link,
		"ExpiresAt": exp.UTC().Format(time.RFC1123),
	})
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	link := n.cfg.FrontendURL + "/reset-password?token=" + url.QueryEscape(payload.Token)
	return n.send(ctx, payload.Email, mail.TemplateResetPassword, map[string]any{
		"Username": payload.Username,
		"Link":     link,
	})
}

func (n *NotificationService) send(ctx context.Context, to string, tmpl mail.Template, data map[string]any) error {
	msg, err := n.renderer.Render(to, tmpl, data)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
	defer cancel()

	err = n.sender.Send(sendCtx, msg)
	n.metrics.RecordMail(string(tmpl), err)
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", tmpl, to, err)
	}
	n.logger.Info("email sent", zap.String("template", string(tmpl)), zap.String("to", to))
	return nil
}
