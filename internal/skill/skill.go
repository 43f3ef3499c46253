package skill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/domain"
	"github.com/seu-repo/alexa-skills/internal/observability/telemetry"
)

var (
	ErrMalformedRequest = errors.New("malformed request envelope")
	ErrNilResponse      = errors.New("handler returned no response")
	ErrHandlerPanic     = errors.New("handler panicked")
	ErrSkillIDMismatch  = errors.New("request addressed to a different skill")
)

// Skill is a compiled dispatch table. It is immutable after Build and safe
// for concurrent use.
type Skill struct {
	name     string
	skillID  string
	routes   map[key]Handler
	fallback Handler
	onError  ExceptionHandler
	messages Messages
	log      *zap.Logger
}

func (s *Skill) Name() string {
	return s.name
}

// HandlerFor returns the name of the handler env would be dispatched to.
func (s *Skill) HandlerFor(env *domain.RequestEnvelope) string {
	return s.route(env).Name
}

// VerifySkillID rejects requests addressed to another skill. It is a no-op
// when the skill was built without an id.
func (s *Skill) VerifySkillID(env *domain.RequestEnvelope) error {
	if s.skillID == "" {
		return nil
	}
	if got := env.ApplicationID(); got != s.skillID {
		return fmt.Errorf("%w: got %q", ErrSkillIDMismatch, got)
	}
	return nil
}

// Invoke dispatches env to its handler. It never fails: handler errors,
// panics and unknown requests all end in the apology response.
func (s *Skill) Invoke(ctx context.Context, env *domain.RequestEnvelope) *domain.ResponseEnvelope {
	if env == nil {
		env = &domain.RequestEnvelope{}
	}

	start := time.Now()
	h := s.route(env)

	ctx, span := telemetry.StartSpan(ctx, "skill.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("skill.name", s.name),
		attribute.String("skill.handler", h.Name),
		attribute.String("alexa.request_type", env.Request.Type),
		attribute.String("alexa.intent", env.IntentName()),
	)

	in := s.newInput(env)
	outcome := "ok"

	resp, err := run(ctx, h, in)
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		resp = s.convert(ctx, in, err)
	} else if h.Name == HandlerFallback {
		outcome = "unhandled"
	}

	telemetry.SkillRequestsTotal.WithLabelValues(s.name, h.Name, outcome).Inc()
	telemetry.SkillLatency.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

	return resp
}

// Handle is the raw entry point used by the transport: JSON in, JSON out.
// A body that does not decode is answered with the apology response.
func (s *Skill) Handle(ctx context.Context, raw []byte) []byte {
	var resp *domain.ResponseEnvelope

	env, err := Decode(raw)
	if err != nil {
		resp = s.convert(ctx, s.newInput(&domain.RequestEnvelope{}), err)
	} else {
		resp = s.Invoke(ctx, env)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
		out, _ = json.Marshal(s.staticApology())
	}
	return out
}

// Decode parses a request envelope. An envelope without a request type is
// rejected as malformed.
func Decode(raw []byte) (*domain.RequestEnvelope, error) {
	var env domain.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if env.Request.Type == "" {
		return nil, fmt.Errorf("%w: missing request type", ErrMalformedRequest)
	}
	return &env, nil
}

func (s *Skill) route(env *domain.RequestEnvelope) Handler {
	if h, ok := s.routes[keyOf(env)]; ok {
		return h
	}
	return s.fallback
}

func (s *Skill) newInput(env *domain.RequestEnvelope) *Input {
	return &Input{
		Envelope: env,
		Response: NewResponseBuilder(),
		Messages: s.messages,
		Logger: s.log.With(
			zap.String("request_id", env.Request.RequestID),
			zap.String("request_type", env.Request.Type),
		),
		skillName: s.name,
	}
}

func run(ctx context.Context, h Handler, in *Input) (resp *domain.ResponseEnvelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%w: %s: %v", ErrHandlerPanic, h.Name, r)
		}
	}()

	resp, err = h.Handle(ctx, in)
	if err == nil && resp == nil {
		err = fmt.Errorf("%w: %s", ErrNilResponse, h.Name)
	}
	return resp, err
}

// convert is the single place a failure becomes a response. A broken
// exception handler still yields the static apology.
func (s *Skill) convert(ctx context.Context, in *Input, cause error) (resp *domain.ResponseEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Exception handler panicked", zap.Any("panic", r), zap.Error(cause))
			resp = s.staticApology()
		}
	}()

	resp = s.onError(ctx, in, cause)
	if resp == nil {
		resp = s.staticApology()
	}
	return resp
}

func (s *Skill) staticApology() *domain.ResponseEnvelope {
	return apology(s.messages)
}
