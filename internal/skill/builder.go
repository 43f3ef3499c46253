package skill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/domain"
)

var (
	ErrInvalidHandler   = errors.New("invalid handler")
	ErrDuplicateHandler = errors.New("duplicate handler")
)

// Names of the handlers every skill gets.
const (
	HandlerLaunch       = "Launch"
	HandlerHelp         = "Help"
	HandlerCancelStop   = "CancelAndStop"
	HandlerSessionEnded = "SessionEnded"
	HandlerFallback     = "Fallback"
)

// Config describes a skill: its skill-specific handlers and the texts used
// by the built-in ones.
type Config struct {
	Name     string
	SkillID  string
	Handlers []Handler
	Messages Messages

	// ExceptionHandler replaces the default apology conversion when set.
	ExceptionHandler ExceptionHandler

	Logger *zap.Logger
}

// Build validates cfg and compiles the dispatch table. Skill handlers are
// registered first; built-in handlers only fill keys no skill handler
// claimed, so a skill can override any of them.
func Build(cfg Config) (*Skill, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: skill name is required", ErrInvalidHandler)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("skill", cfg.Name))

	routes := make(map[key]Handler)
	for i, h := range cfg.Handlers {
		if err := validateHandler(h); err != nil {
			return nil, fmt.Errorf("handler %d (%q): %w", i, h.Name, err)
		}
		for _, k := range h.Predicate.keys {
			if prev, ok := routes[k]; ok {
				return nil, fmt.Errorf("%w: %s claimed by %q and %q", ErrDuplicateHandler, k, prev.Name, h.Name)
			}
			routes[k] = h
		}
	}

	for _, h := range builtinHandlers() {
		for _, k := range h.Predicate.keys {
			if prev, ok := routes[k]; ok {
				log.Debug("Built-in handler overridden",
					zap.String("builtin", h.Name),
					zap.String("handler", prev.Name),
					zap.String("key", k.String()),
				)
				continue
			}
			routes[k] = h
		}
	}

	onError := cfg.ExceptionHandler
	if onError == nil {
		onError = defaultExceptionHandler
	}

	return &Skill{
		name:     cfg.Name,
		skillID:  cfg.SkillID,
		routes:   routes,
		fallback: Handler{Name: HandlerFallback, Handle: fallback},
		onError:  onError,
		messages: cfg.Messages.withDefaults(),
		log:      log,
	}, nil
}

func validateHandler(h Handler) error {
	if h.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidHandler)
	}
	if h.Handle == nil {
		return fmt.Errorf("%w: missing handler body", ErrInvalidHandler)
	}
	if err := h.Predicate.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHandler, err)
	}
	return nil
}

func builtinHandlers() []Handler {
	return []Handler{
		{Name: HandlerLaunch, Predicate: RequestType(domain.RequestTypeLaunch), Handle: launch},
		{Name: HandlerHelp, Predicate: IntentName(domain.IntentHelp), Handle: help},
		{Name: HandlerCancelStop, Predicate: IntentName(domain.IntentCancel, domain.IntentStop), Handle: cancelAndStop},
		{Name: HandlerSessionEnded, Predicate: RequestType(domain.RequestTypeSessionEnded), Handle: sessionEnded},
	}
}

func launch(_ context.Context, in *Input) (*domain.ResponseEnvelope, error) {
	b := in.Response.Speak(in.Messages.Welcome).Reprompt(in.Messages.Reprompt)
	if in.Messages.CardTitle != "" {
		b.SimpleCard(in.Messages.CardTitle, in.Messages.Welcome)
	}
	return b.EndSession(false).Build(), nil
}

func help(_ context.Context, in *Input) (*domain.ResponseEnvelope, error) {
	b := in.Response.Speak(in.Messages.Help).Reprompt(in.Messages.Reprompt)
	if in.Messages.CardTitle != "" {
		b.SimpleCard(in.Messages.CardTitle+" Help", in.Messages.Help)
	}
	return b.EndSession(false).Build(), nil
}

func cancelAndStop(_ context.Context, in *Input) (*domain.ResponseEnvelope, error) {
	return in.Response.Speak(in.Messages.Goodbye).EndSession(true).Build(), nil
}

// The platform does not render a reply to SessionEndedRequest.
func sessionEnded(_ context.Context, in *Input) (*domain.ResponseEnvelope, error) {
	if e := in.Envelope.Request.Error; e != nil {
		in.Logger.Warn("Session ended with error",
			zap.String("reason", in.Envelope.Request.Reason),
			zap.String("error_type", e.Type),
			zap.String("error_message", e.Message),
		)
	}
	return in.Response.Build(), nil
}

func fallback(_ context.Context, in *Input) (*domain.ResponseEnvelope, error) {
	in.Logger.Info("No handler for request",
		zap.String("request_type", in.Envelope.Request.Type),
		zap.String("intent", in.Envelope.IntentName()),
	)
	return in.Apology(), nil
}

func defaultExceptionHandler(_ context.Context, in *Input, err error) *domain.ResponseEnvelope {
	in.Logger.Error("Skill handler failed",
		zap.String("request_type", in.Envelope.Request.Type),
		zap.String("intent", in.Envelope.IntentName()),
		zap.Error(err),
	)
	return in.Apology()
}
