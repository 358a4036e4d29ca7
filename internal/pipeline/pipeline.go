// Package pipeline turns one inbound message into one outbound response
// plus an acknowledgment. Each run resolves the tenant, binds a fresh
// request context, activates the tenant's entitled capabilities,
// dispatches the message, emits the reply and tears everything down —
// in that order, with teardown guaranteed on every exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
	"github.com/avonarret22/whatsapp-bot-template/internal/events"
	"github.com/avonarret22/whatsapp-bot-template/internal/feature"
	"github.com/avonarret22/whatsapp-bot-template/internal/history"
	"github.com/avonarret22/whatsapp-bot-template/internal/messenger"
	"github.com/avonarret22/whatsapp-bot-template/internal/metrics"
	"github.com/avonarret22/whatsapp-bot-template/internal/reqctx"
	"github.com/avonarret22/whatsapp-bot-template/internal/tenant"
)

const (
	genericApology  = "Lo siento, tuve un problema al procesar tu mensaje. Intenta de nuevo."
	genericFallback = "Lo siento, no pude procesar tu mensaje."
	rateLimitReply  = "Estás enviando mensajes muy rápido. Por favor espera un momento."

	previewLen = 50
)

// capabilityMinPlan maps each known capability to the lowest plan that
// may enable it. Capabilities absent here default to basic.
var capabilityMinPlan = map[string]domain.Plan{
	feature.CapabilityAIReply: domain.PlanBasic,
	"reservations":            domain.PlanPro,
	"crm":                     domain.PlanPro,
	"analytics":               domain.PlanEnterprise,
}

var planRank = map[domain.Plan]int{
	domain.PlanBasic:      1,
	domain.PlanPro:        2,
	domain.PlanEnterprise: 3,
}

func planAllows(plan domain.Plan, capability string) bool {
	min, ok := capabilityMinPlan[capability]
	if !ok {
		min = domain.PlanBasic
	}
	return planRank[plan] >= planRank[min]
}

// Ack is the synchronous acknowledgment returned to the inbound
// transport. It never waits on outbound delivery.
type Ack struct {
	Status          string `json:"status"`
	MessageID       string `json:"message_sid,omitempty"`
	ResponsePreview string `json:"response_preview,omitempty"`
	Error           string `json:"error,omitempty"`
	HTTPStatus      int    `json:"-"`
}

// MessengerFactory builds the delivery messenger for one tenant.
type MessengerFactory func(t *domain.TenantConfig) (messenger.Messenger, error)

// Pipeline orchestrates message handling. One instance serves all
// requests concurrently; all per-request state lives in the request
// context and the per-request capability registry.
type Pipeline struct {
	tenants    *tenant.Registry
	available  *feature.Available
	resolver   Resolver
	history    domain.HistoryStore
	events     events.Publisher
	messengers MessengerFactory
	limits     *TenantLimiter
	logger     *slog.Logger
	maxTurns   int
}

type Config struct {
	Tenants    *tenant.Registry
	Available  *feature.Available
	Resolver   Resolver
	History    domain.HistoryStore
	Events     events.Publisher
	Messengers MessengerFactory // nil uses messenger.ForTenant
	Logger     *slog.Logger
	MaxTurns   int // history turns injected into the capability context
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = events.NewNoopPublisher()
	}
	if cfg.History == nil {
		cfg.History = history.NewNoopStore()
	}
	if cfg.Messengers == nil {
		logger := cfg.Logger
		cfg.Messengers = func(t *domain.TenantConfig) (messenger.Messenger, error) {
			return messenger.ForTenant(t, logger)
		}
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 5
	}
	return &Pipeline{
		tenants:    cfg.Tenants,
		available:  cfg.Available,
		resolver:   cfg.Resolver,
		history:    cfg.History,
		events:     cfg.Events,
		messengers: cfg.Messengers,
		limits:     NewTenantLimiter(),
		logger:     cfg.Logger,
		maxTurns:   cfg.MaxTurns,
	}
}

// Handle runs the full pipeline for one inbound message.
func (p *Pipeline) Handle(ctx context.Context, msg domain.InboundMessage) Ack {
	metrics.MessagesReceived.Inc()
	started := time.Now()

	p.logger.Info("message received", "message_id", msg.MessageID, "from", msg.From)

	// Step 1: resolve tenant.
	tenantID := p.resolver.Resolve(msg)
	tcfg, err := p.tenants.Get(tenantID)
	if err != nil {
		var nf *domain.TenantNotFoundError
		if errors.As(err, &nf) {
			p.logger.Error("tenant not found", "tenant", tenantID, "message_id", msg.MessageID)
			return Ack{Status: "error", HTTPStatus: http.StatusNotFound, Error: err.Error()}
		}
		p.logger.Error("tenant lookup failed", "tenant", tenantID, "err", err)
		return Ack{Status: "error", HTTPStatus: http.StatusInternalServerError, Error: "internal server error"}
	}

	p.logger.Info("using tenant", "tenant", tcfg.TenantID, "plan", tcfg.Plan)

	// Step 2: bind a fresh capability registry into the request context.
	reg := feature.NewRegistry(p.available, p.logger)
	ctx = reqctx.Bind(ctx, &reqctx.Binding{Tenant: tcfg, Features: reg})

	// Step 7: teardown on every exit path, including panics below.
	defer reg.DeactivateAll()

	if !p.limits.Allow(tcfg.TenantID, tcfg.RateLimits.MessagesPerMinute) {
		metrics.RateLimitedInputs.Inc()
		p.logger.Warn("rate limit exceeded", "tenant", tcfg.TenantID, "from", msg.From)
		reply := tcfg.RateLimitMessage()
		if reply == "" {
			reply = rateLimitReply
		}
		p.emit(ctx, tcfg, msg, reply)
		return Ack{
			Status:          "success",
			HTTPStatus:      http.StatusOK,
			MessageID:       msg.MessageID,
			ResponsePreview: preview(reply),
		}
	}

	// Steps 3-5 behind a panic barrier: a capability bug must never skip
	// teardown or leak a stack trace to the sender.
	text, providerName, fellBack, perr := p.respond(ctx, tcfg, reg, msg)
	if perr != nil {
		p.logger.Error("pipeline failure", "tenant", tcfg.TenantID, "message_id", msg.MessageID, "err", perr)
		return Ack{Status: "error", HTTPStatus: http.StatusInternalServerError, Error: "internal server error"}
	}
	if fellBack {
		metrics.FallbacksServed.Inc()
	} else {
		metrics.RepliesGenerated.Inc()
	}

	p.recordHistory(ctx, tcfg, msg, text)

	// Step 6: emit detached; the ack below never waits on delivery.
	p.emit(ctx, tcfg, msg, text)

	p.events.MessageProcessed(ctx, events.MessageProcessed{
		TenantID:  tcfg.TenantID,
		MessageID: msg.MessageID,
		Provider:  providerName,
		Fallback:  fellBack,
		LatencyMs: time.Since(started).Milliseconds(),
	})

	// Step 8: acknowledge.
	return Ack{
		Status:          "success",
		HTTPStatus:      http.StatusOK,
		MessageID:       msg.MessageID,
		ResponsePreview: preview(text),
	}
}

// respond runs activation, dispatch and fallback selection. Panics are
// converted into an error so the caller can return a clean
// internal-error acknowledgment.
func (p *Pipeline) respond(ctx context.Context, tcfg *domain.TenantConfig, reg *feature.Registry, msg domain.InboundMessage) (text, providerName string, fellBack bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in pipeline: %v", r)
		}
	}()

	// Step 3: activate every enabled, entitled, available capability.
	// One capability's failure never blocks the others.
	for name, fc := range tcfg.Capabilities {
		if !fc.Enabled {
			continue
		}
		if !p.available.Has(name) {
			p.logger.Warn("capability not available in this build, skipping", "capability", name, "tenant", tcfg.TenantID)
			continue
		}
		if !planAllows(tcfg.Plan, name) {
			p.logger.Warn("capability not covered by plan, skipping", "capability", name, "plan", tcfg.Plan, "tenant", tcfg.TenantID)
			continue
		}
		if _, aerr := reg.Activate(ctx, name, fc.Settings); aerr != nil {
			p.logger.Error("capability activation failed", "capability", name, "tenant", tcfg.TenantID, "err", aerr)
		}
	}

	// Step 4: dispatch to the AI reply capability when active.
	if ai := reg.Get(feature.CapabilityAIReply); ai != nil {
		history, herr := p.history.Recent(ctx, tcfg.TenantID, msg.From, p.maxTurns)
		if herr != nil {
			p.logger.Warn("history lookup failed", "tenant", tcfg.TenantID, "err", herr)
			history = nil
		}

		result, derr := ai.Process(ctx, msg.Body, domain.UserContext{
			From:        msg.From,
			Personality: tcfg.Personality,
			History:     history,
			Tenant:      tcfg,
		})
		switch {
		case derr != nil:
			var svc *domain.CapabilityServiceError
			if errors.As(derr, &svc) {
				p.logger.Error("AI service error", "backend", svc.Backend, "tenant", tcfg.TenantID, "err", derr)
			} else {
				p.logger.Error("AI processing error", "tenant", tcfg.TenantID, "err", derr)
			}
			return genericApology, "", true, nil
		case result != nil:
			p.logger.Info("AI response generated", "tenant", tcfg.TenantID, "provider", result.Metadata["provider"])
			return result.Text, result.Metadata["provider"], false, nil
		}
		// nil result: the capability declined, fall through.
	}

	// Step 5: fallback when nothing produced a reply.
	if msgs := tcfg.FallbackMessages(); len(msgs) > 0 {
		return msgs[0], "", true, nil
	}
	return genericFallback, "", true, nil
}

// recordHistory appends both sides of the exchange. Failures are logged,
// never escalated.
func (p *Pipeline) recordHistory(ctx context.Context, tcfg *domain.TenantConfig, msg domain.InboundMessage, reply string) {
	if err := p.history.Append(ctx, tcfg.TenantID, msg.From, "user", msg.Body); err != nil {
		p.logger.Warn("history append failed", "tenant", tcfg.TenantID, "err", err)
		return
	}
	if err := p.history.Append(ctx, tcfg.TenantID, msg.From, "assistant", reply); err != nil {
		p.logger.Warn("history append failed", "tenant", tcfg.TenantID, "err", err)
	}
}

// emit hands the response to the tenant's messenger in a detached task.
// Inbound cancellation does not cancel a delivery already dispatched;
// delivery failures are logged and dropped.
func (p *Pipeline) emit(ctx context.Context, tcfg *domain.TenantConfig, msg domain.InboundMessage, text string) {
	sendCtx := context.WithoutCancel(ctx)
	go func() {
		m, err := p.messengers(tcfg)
		if err != nil {
			metrics.DeliveriesFailed.Inc()
			p.logger.Error("messenger unavailable", "tenant", tcfg.TenantID, "err", err)
			return
		}
		if !m.Configured() {
			p.logger.Warn("messenger not configured, dropping response",
				"messenger", m.Name(), "tenant", tcfg.TenantID, "preview", preview(text))
			return
		}

		sid, err := m.Send(sendCtx, domain.OutboundResponse{
			TenantID: tcfg.TenantID,
			To:       msg.From,
			Text:     text,
		})
		if err != nil {
			metrics.DeliveriesFailed.Inc()
			p.logger.Error("outbound delivery failed", "messenger", m.Name(), "tenant", tcfg.TenantID, "err", err)
			return
		}
		p.logger.Info("response delivered", "messenger", m.Name(), "tenant", tcfg.TenantID, "delivery_id", sid)
	}()
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen]) + "..."
}
