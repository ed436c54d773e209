// Package notification turns lifecycle events into notifications. Each
// (event, recipient) pair is stored once; email delivery runs after the
// originating transition committed and never fails it.
package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/notification/contacts"
	notifhandler "marketplace_backend/internal/notification/handler"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/sse"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContactDirectory resolves how to reach an account outside the app.
type ContactDirectory interface {
	Lookup(ctx context.Context, accountID string) (*contacts.Contact, error)
}

// SMSSender delivers a short text message to a phone number.
type SMSSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// RetryScheduler enqueues a later email delivery attempt.
type RetryScheduler interface {
	ScheduleEmailRetry(ctx context.Context, notificationID string, runAt time.Time) error
}

const (
	maxEmailAttempts    = 5
	emailRetryBaseDelay = time.Minute
	emailRetryMaxDelay  = time.Hour
)

// notificationNamespace seeds the name-based notification ids.
var notificationNamespace = uuid.MustParse("8a3f5c1e-6b2d-4e7a-9c0b-2d4e6f8a1b3c")

// Module handles all notification-related event subscriptions.
type Module struct {
	sender       email.Sender
	cfg          config.NotificationConfig
	log          *logger.Logger
	sms          SMSSender
	sse          *sse.Service
	contacts     ContactDirectory
	retries      RetryScheduler
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	now          func() time.Time
}

// New creates a new notification module.
func New(store docstore.Store, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	inAppSvc := inapp.NewService(inapp.NewRepository(store), log)

	return &Module{
		sender:       sender,
		cfg:          cfg,
		log:          log,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	if m.sse != nil {
		notifications.GET("/stream", m.sse.Handler(actorID))
	}
	m.inAppHandler.RegisterRoutes(notifications)
}

func actorID(c *gin.Context) (string, bool) {
	actor := httpkit.GetActor(c)
	return actor.ID, !actor.IsAnonymous()
}

// SetSSE injects the SSE service so new notifications are pushed live.
func (m *Module) SetSSE(s *sse.Service) {
	m.sse = s
	m.inAppService.SetSSE(s)
}

// SetContactDirectory injects the account contact lookup.
func (m *Module) SetContactDirectory(dir ContactDirectory) { m.contacts = dir }

// SetSMSSender enables the SMS channel for urgent notification types.
func (m *Module) SetSMSSender(s SMSSender) { m.sms = s }

// SetRetryScheduler enables retries of failed email deliveries.
func (m *Module) SetRetryScheduler(s RetryScheduler) { m.retries = s }

// InAppService exposes the in-app notification service for integration points.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// RegisterHandlers subscribes to every event that raises a notification.
func (m *Module) RegisterHandlers(bus events.Bus) {
	// Job domain events
	bus.Subscribe(events.JobCreated{}.EventName(), m)
	bus.Subscribe(events.JobAccepted{}.EventName(), m)
	bus.Subscribe(events.JobCompleted{}.EventName(), m)
	bus.Subscribe(events.JobCancelled{}.EventName(), m)

	// Quote domain events
	bus.Subscribe(events.QuoteCreated{}.EventName(), m)
	bus.Subscribe(events.QuoteAccepted{}.EventName(), m)
	bus.Subscribe(events.QuoteDeclined{}.EventName(), m)
	bus.Subscribe(events.QuoteWithdrawn{}.EventName(), m)
	bus.Subscribe(events.QuoteExpired{}.EventName(), m)

	// Messaging and guest events
	bus.Subscribe(events.MessageReceived{}.EventName(), m)
	bus.Subscribe(events.GuestDraftsLinked{}.EventName(), m)

	bus.Subscribe(events.NotificationEmailRetryDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	if e, ok := event.(events.NotificationEmailRetryDue); ok {
		return m.RetryEmail(ctx, e.NotificationID)
	}

	var errs []error
	for _, d := range draftsFor(event) {
		if err := m.notify(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotificationID derives the id of the notification of type typ for
// recipient raised by the transition named by dedupKey.
func NotificationID(typ inapp.Type, recipient, dedupKey string) string {
	name := string(typ) + "|" + recipient + "|" + dedupKey
	return uuid.NewSHA1(notificationNamespace, []byte(name)).String()
}

// smsTypes are the notification types that also go out by SMS.
var smsTypes = map[inapp.Type]bool{
	inapp.TypeQuoteAccepted: true,
	inapp.TypeJobCancelled:  true,
}

func (m *Module) channelsFor(recipient string, typ inapp.Type) []inapp.Channel {
	if strings.HasPrefix(recipient, inapp.EmailRecipientPrefix) {
		return []inapp.Channel{inapp.ChannelEmail}
	}
	channels := append([]inapp.Channel(nil), inapp.DefaultChannels...)
	if m.sms != nil && smsTypes[typ] {
		channels = append(channels, inapp.ChannelSMS)
	}
	return channels
}

func (m *Module) notify(ctx context.Context, d draft) error {
	n := &inapp.Notification{
		ID:             NotificationID(d.typ, d.recipient, d.dedupKey),
		RecipientID:    d.recipient,
		Type:           d.typ,
		Title:          d.title,
		Body:           d.body,
		RelatedJobID:   d.jobID,
		RelatedQuoteID: d.quoteID,
		Channels:       m.channelsFor(d.recipient, d.typ),
		SentAt:         m.now(),
	}
	if err := m.inAppService.Send(ctx, n); err != nil {
		if errors.Is(err, inapp.ErrAlreadyExists) {
			return nil
		}
		return err
	}

	if n.HasChannel(inapp.ChannelEmail) {
		m.deliverEmail(ctx, n)
	}
	if n.HasChannel(inapp.ChannelSMS) {
		m.deliverSMS(ctx, n)
	}
	return nil
}

// RetryEmail attempts the email delivery of a stored notification again.
func (m *Module) RetryEmail(ctx context.Context, notificationID string) error {
	n, err := m.inAppService.Get(ctx, notificationID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if n.EmailSent || !n.HasChannel(inapp.ChannelEmail) {
		return nil
	}
	m.deliverEmail(ctx, n)
	return nil
}

func (m *Module) deliverEmail(ctx context.Context, n *inapp.Notification) {
	attempts := n.EmailAttempts + 1
	to, err := m.resolveEmail(ctx, n.RecipientID)
	if err != nil {
		m.log.NotificationDeliveryFailed(n.ID, string(inapp.ChannelEmail), err)
		if err := m.inAppService.RecordEmailAttempt(ctx, n.ID, false, attempts); err != nil {
			m.log.Warn("failed to record email attempt", "notification_id", n.ID, "error", err)
		}
		m.scheduleRetry(ctx, n.ID, attempts)
		return
	}
	if to == "" {
		m.log.Debug("no email address for recipient", "notification_id", n.ID, "recipient_id", n.RecipientID)
		return
	}

	sendErr := m.sender.SendNotificationEmail(ctx, to, m.emailFor(n))
	if err := m.inAppService.RecordEmailAttempt(ctx, n.ID, sendErr == nil, attempts); err != nil {
		m.log.Warn("failed to record email attempt", "notification_id", n.ID, "error", err)
	}
	if sendErr != nil {
		m.log.NotificationDeliveryFailed(n.ID, string(inapp.ChannelEmail), sendErr)
		m.scheduleRetry(ctx, n.ID, attempts)
	}
}

// deliverSMS is best effort. Failed SMS deliveries are not retried.
func (m *Module) deliverSMS(ctx context.Context, n *inapp.Notification) {
	if m.sms == nil || m.contacts == nil {
		return
	}
	contact, err := m.contacts.Lookup(ctx, n.RecipientID)
	if err != nil {
		m.log.NotificationDeliveryFailed(n.ID, string(inapp.ChannelSMS), err)
		return
	}
	if contact == nil || contact.Phone == "" {
		return
	}

	if err := m.sms.SendMessage(ctx, contact.Phone, n.Title+": "+n.Body); err != nil {
		m.log.NotificationDeliveryFailed(n.ID, string(inapp.ChannelSMS), err)
		return
	}
	if err := m.inAppService.RecordSMSSent(ctx, n.ID); err != nil {
		m.log.Warn("failed to record sms delivery", "notification_id", n.ID, "error", err)
	}
}

func (m *Module) resolveEmail(ctx context.Context, recipientID string) (string, error) {
	if addr, ok := strings.CutPrefix(recipientID, inapp.EmailRecipientPrefix); ok {
		return addr, nil
	}
	if m.contacts == nil {
		return "", nil
	}
	contact, err := m.contacts.Lookup(ctx, recipientID)
	if err != nil || contact == nil {
		return "", err
	}
	return contact.Email, nil
}

func (m *Module) emailFor(n *inapp.Notification) email.Message {
	msg := email.Message{
		Subject: n.Title,
		Heading: n.Title,
		Body:    n.Body,
	}
	if n.RelatedJobID != "" && m.cfg != nil {
		msg.CTALabel = "Open job"
		msg.CTAURL = strings.TrimRight(m.cfg.GetAppBaseURL(), "/") + "/jobs/" + n.RelatedJobID
	}
	return msg
}

func (m *Module) scheduleRetry(ctx context.Context, notificationID string, attempt int) {
	if m.retries == nil {
		return
	}
	if attempt >= maxEmailAttempts {
		m.log.Warn("notification email exhausted retries", "notification_id", notificationID, "attempt", attempt)
		return
	}
	runAt := m.now().Add(computeRetryDelay(attempt))
	if err := m.retries.ScheduleEmailRetry(ctx, notificationID, runAt); err != nil {
		m.log.Error("notification email retry scheduling failed", "notification_id", notificationID, "error", err)
	}
}

func computeRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := emailRetryBaseDelay << (attempt - 1)
	if delay > emailRetryMaxDelay {
		return emailRetryMaxDelay
	}
	return delay
}

var _ apphttp.Module = (*Module)(nil)
