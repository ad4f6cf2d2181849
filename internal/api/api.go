// Package api provides HTTP handlers and the main API server logic for Cove.
//
// It exposes the Twilio SMS/voice webhooks that drive lead qualification
// conversations, lead intake endpoints for web forms and CRM webhooks, and
// a small operational surface (industries, flow generation, nudge sweep).
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/covehq/cove/internal/email"
	"github.com/covehq/cove/internal/flow"
	"github.com/covehq/cove/internal/genai"
	"github.com/covehq/cove/internal/hours"
	"github.com/covehq/cove/internal/models"
	"github.com/covehq/cove/internal/notify"
	"github.com/covehq/cove/internal/scheduler"
	"github.com/covehq/cove/internal/store"
	"github.com/covehq/cove/internal/twiliosms"
)

// Default configuration constants
const (
	// DefaultAPIAddr is the default API server listen address
	DefaultAPIAddr = ":8080"
	// DefaultCountryCode is the default country code for phone normalization
	DefaultCountryCode = "+61"
	// DefaultDuplicateWindow suppresses new leads for a phone that already
	// has an active conversation this recent
	DefaultDuplicateWindow = 30 * time.Minute
	// DefaultNudgeCron is the default schedule for the nudge sweep
	DefaultNudgeCron = "*/10 * * * *"
	// DefaultShutdownTimeout bounds graceful HTTP shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds API server configuration.
type Opts struct {
	Addr               string
	DefaultCountryCode string
	NudgeCron          string
	DuplicateWindow    time.Duration
}

// Option configures API server options.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithCountryCode sets the default country code for phone normalization.
func WithCountryCode(code string) Option {
	return func(o *Opts) { o.DefaultCountryCode = code }
}

// WithNudgeCron sets the cron expression for the periodic nudge sweep.
func WithNudgeCron(expr string) Option {
	return func(o *Opts) { o.NudgeCron = expr }
}

// WithDuplicateWindow sets how recent an active lead must be to suppress a
// new lead for the same phone.
func WithDuplicateWindow(d time.Duration) Option {
	return func(o *Opts) { o.DuplicateWindow = d }
}

// Server holds the wired modules behind the HTTP surface.
type Server struct {
	st                 store.Store
	eng                *flow.Engine
	sms                twiliosms.Sender
	dispatcher         *notify.Dispatcher
	gaClient           *genai.Client
	addr               string
	defaultCountryCode string
	nudgeCron          string
	duplicateWindow    time.Duration
}

// NewServer creates a Server from its dependencies. gaClient may be nil;
// the engine then runs without the AI reply fallback and flow generation
// is reported unavailable.
func NewServer(st store.Store, sms twiliosms.Sender, dispatcher *notify.Dispatcher, gaClient *genai.Client, opts ...Option) *Server {
	cfg := Opts{
		Addr:               DefaultAPIAddr,
		DefaultCountryCode: DefaultCountryCode,
		NudgeCron:          DefaultNudgeCron,
		DuplicateWindow:    DefaultDuplicateWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	engOpts := []flow.EngineOption{flow.WithDefaultCountryCode(cfg.DefaultCountryCode)}
	if gaClient != nil {
		engOpts = append(engOpts, flow.WithResolver(gaClient))
	}

	return &Server{
		st:                 st,
		eng:                flow.NewEngine(engOpts...),
		sms:                sms,
		dispatcher:         dispatcher,
		gaClient:           gaClient,
		addr:               cfg.Addr,
		defaultCountryCode: cfg.DefaultCountryCode,
		nudgeCron:          cfg.NudgeCron,
		duplicateWindow:    cfg.DuplicateWindow,
	}
}

// routes registers all HTTP handlers on a fresh mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sms/inbound", s.smsInboundHandler)
	mux.HandleFunc("/api/voice/inbound", s.voiceInboundHandler)
	mux.HandleFunc("/api/lead", s.createLeadHandler)
	mux.HandleFunc("/api/webhook/generic/{businessID}", s.genericWebhookHandler)
	mux.HandleFunc("/api/industries", s.industriesHandler)
	mux.HandleFunc("/api/flows/generate", s.generateFlowHandler)
	mux.HandleFunc("/api/admin/nudge", s.nudgeHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run wires the store, SMS, GenAI, email, and notification modules from
// their option sets and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, storeOpts []store.Option, smsOpts []twiliosms.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	smsClient, err := twiliosms.NewClient(smsOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize Twilio client: %w", err)
	}

	var gaClient *genai.Client
	if c, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Warn("GenAI client not configured, AI reply fallback and flow generation disabled", "error", err)
	} else {
		gaClient = c
	}

	emailSender := buildEmailSender(ctx)

	cfg := Opts{DefaultCountryCode: DefaultCountryCode}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	dispatcher := notify.NewDispatcher(
		notify.WithSMSSender(smsClient),
		notify.WithEmailSender(emailSender),
		notify.WithWebhookSender(notify.NewWebhookSender()),
		notify.WithCountryCode(cfg.DefaultCountryCode),
	)

	srv := NewServer(st, smsClient, dispatcher, gaClient, apiOpts...)

	sched := scheduler.New()
	defer sched.Stop()
	if err := sched.Schedule("nudge sweep", srv.nudgeCron, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		nudged := srv.runNudgeSweep(sweepCtx)
		if nudged > 0 {
			slog.Info("Nudge sweep finished", "nudged", nudged)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule nudge sweep: %w", err)
	}

	httpServer := &http.Server{Addr: srv.addr, Handler: srv.routes()}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Cove API listening", "addr", srv.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutting down Cove API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// buildStore selects a backend by DSN scheme. An empty DSN falls back to
// the in-memory store.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Warn("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	switch store.DetectDSNType(cfg.DSN) {
	case store.DSNTypePostgres:
		return store.NewPostgresStore(storeOpts...)
	default:
		return store.NewSQLiteStore(storeOpts...)
	}
}

// buildEmailSender picks the email backend from the environment:
// EMAIL_PROVIDER=ses selects SES, otherwise Resend when a key is present.
func buildEmailSender(ctx context.Context) email.Sender {
	if os.Getenv("EMAIL_PROVIDER") == "ses" {
		sender, err := email.NewSESSender(ctx, os.Getenv("AWS_REGION"), os.Getenv("NOTIFY_EMAIL_FROM"))
		if err != nil {
			slog.Warn("SES email sender unavailable, email notifications disabled", "error", err)
			return nil
		}
		slog.Debug("Email notifications via SES")
		return sender
	}
	sender, err := email.NewResendSender()
	if err != nil {
		slog.Debug("Resend email sender not configured, email notifications disabled", "error", err)
		return nil
	}
	slog.Debug("Email notifications via Resend")
	return sender
}

// runNudgeSweep sends one follow-up to every stalled active lead whose
// business has nudging enabled and is inside operating hours. The nudge
// flag is persisted before the send so a delivery retry can never double
// nudge. Returns the number of leads nudged.
func (s *Server) runNudgeSweep(ctx context.Context) int {
	leads, err := s.st.ActiveLeads()
	if err != nil {
		slog.Error("Nudge sweep failed to list active leads", "error", err)
		return 0
	}

	now := time.Now()
	businesses := make(map[string]*models.Business)
	nudged := 0

	for i := range leads {
		lead := &leads[i]
		business, ok := businesses[lead.BusinessID]
		if !ok {
			business, err = s.st.GetBusiness(lead.BusinessID)
			if err != nil {
				slog.Error("Nudge sweep business lookup failed", "error", err, "businessID", lead.BusinessID)
				continue
			}
			businesses[lead.BusinessID] = business
		}
		if business == nil || !business.Active || business.TwilioFromNumber == "" {
			continue
		}
		if !hours.Within(business, now) {
			continue
		}
		if !flow.ShouldNudge(lead, business, now) {
			continue
		}

		flowDef := flow.ResolveFlow(business)
		body := flow.BuildNudgeMessage(business, lead, flowDef)

		sent := true
		patched, err := s.st.PatchLead(lead.ID, &models.LeadPatch{NudgeSent: boolPtr(true)})
		if err != nil {
			slog.Error("Nudge sweep failed to mark lead", "error", err, "leadID", lead.ID)
			continue
		}
		if err := s.sms.SendSMS(ctx, business.TwilioFromNumber, patched.Phone, body); err != nil {
			slog.Error("Nudge sweep SMS failed", "error", err, "leadID", lead.ID)
			sent = false
		}
		if sent {
			s.logMessage(patched.ID, models.DirectionOutbound, body)
			nudged++
		}
	}
	return nudged
}

// logMessage appends one transcript row, logging rather than propagating
// failures since the transcript is advisory.
func (s *Server) logMessage(leadID string, direction models.MessageDirection, body string) {
	if err := s.st.SaveMessage(&models.Message{LeadID: leadID, Direction: direction, Body: body}); err != nil {
		slog.Error("Failed to save message row", "error", err, "leadID", leadID, "direction", direction)
	}
}

func boolPtr(b bool) *bool { return &b }
