package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/domain"
	"github.com/seu-repo/alexa-skills/internal/observability/telemetry"
	"github.com/seu-repo/alexa-skills/internal/ports"
	"github.com/seu-repo/alexa-skills/internal/skill"
)

const (
	SkillName    = "gemini"
	QueryIntent  = "GeminiQueryIntent"
	QuestionSlot = "question"

	DefaultTimeout = 7500 * time.Millisecond

	maxCacheBudget = 250 * time.Millisecond
)

const (
	welcomeText    = "Welcome to Gemini. You can ask me anything. For example, say: ask, what is the speed of light?"
	helpText       = "You can ask me any question. For example: ask, what is quantum computing?"
	noQuestionText = "I didn't catch a question. Please try again."
	repromptText   = "What would you like to ask?"
	anythingElse   = "Anything else you'd like to ask?"
	cardTitle      = "Gemini"
	cacheKeyPrefix = "gemini:answer:"
)

var ErrEmptyAnswer = errors.New("generator returned no speakable text")

type Config struct {
	SkillID           string
	SystemInstruction string
	Timeout           time.Duration
	MaxSpeechLength   int
	AnswerTTL         time.Duration
}

// Service is the Gemini skill: it forwards the spoken question to a text
// generator and speaks the answer back.
type Service struct {
	generator ports.TextGenerator
	cache     ports.Cache
	cfg       Config
	log       *zap.Logger
}

// NewService creates the skill service. cache may be nil to disable answer
// caching.
func NewService(generator ports.TextGenerator, cache ports.Cache, cfg Config, log *zap.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSpeechLength <= 0 {
		cfg.MaxSpeechLength = skill.DefaultMaxSpeechLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		generator: generator,
		cache:     cache,
		cfg:       cfg,
		log:       log,
	}
}

// Build compiles the skill's dispatch table. Launch and help are served by
// the shared built-ins with this skill's texts.
func (s *Service) Build() (*skill.Skill, error) {
	return skill.Build(skill.Config{
		Name:    SkillName,
		SkillID: s.cfg.SkillID,
		Messages: skill.Messages{
			Welcome:   welcomeText,
			Help:      helpText,
			Reprompt:  repromptText,
			CardTitle: cardTitle,
		},
		Handlers: []skill.Handler{
			{Name: QueryIntent, Predicate: skill.IntentName(QueryIntent), Handle: s.HandleQuery},
		},
		Logger: s.log,
	})
}

// HandleQuery answers GeminiQueryIntent. Generator failures are recovered
// here as the apology response.
func (s *Service) HandleQuery(ctx context.Context, in *skill.Input) (*domain.ResponseEnvelope, error) {
	question := strings.TrimSpace(in.Slot(QuestionSlot))
	if question == "" {
		return in.Response.
			Speak(noQuestionText).
			Reprompt(noQuestionText).
			EndSession(false).
			Build(), nil
	}

	answer, err := s.Ask(ctx, question)
	if err != nil {
		in.Logger.Warn("Unable to answer question",
			zap.Error(err),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		)
		return in.Apology(), nil
	}

	return in.Response.
		Speak(answer).
		SimpleCard(cardTitle, answer).
		Reprompt(anythingElse).
		EndSession(false).
		Build(), nil
}

// Ask returns a speakable answer to question. The cache round trips and
// the generator call all share the configured timeout. It does not retry.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	key := cacheKey(question)
	if answer, ok := s.cached(ctx, key); ok {
		return answer, nil
	}

	text, err := bounded(ctx, func(ctx context.Context) (string, error) {
		return s.generator.Generate(ctx, ports.GenerateRequest{
			Prompt:            question,
			SystemInstruction: s.cfg.SystemInstruction,
		})
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer := skill.SanitizeSpeech(text, s.cfg.MaxSpeechLength)
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	s.store(ctx, key, answer)
	return answer, nil
}

// bounded returns when fn does or when ctx is done, whichever comes first,
// so a collaborator that ignores ctx still cannot hold the request.
func bounded[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	done := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		done <- result{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// cacheBudget caps a cache round trip at a slice of the request timeout,
// leaving the rest to the generator.
func (s *Service) cacheBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := s.cfg.Timeout / 5
	if budget > maxCacheBudget {
		budget = maxCacheBudget
	}
	return context.WithTimeout(ctx, budget)
}

func (s *Service) cached(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	ctx, cancel := s.cacheBudget(ctx)
	defer cancel()

	answer, err := bounded(ctx, func(ctx context.Context) (string, error) {
		return s.cache.Get(ctx, key)
	})
	if err != nil || answer == "" {
		if err != nil && !errors.Is(err, ports.ErrCacheMiss) {
			s.log.Warn("Answer cache lookup failed", zap.Error(err))
		}
		telemetry.AnswerCacheTotal.WithLabelValues("miss").Inc()
		return "", false
	}
	telemetry.AnswerCacheTotal.WithLabelValues("hit").Inc()
	return answer, true
}

func (s *Service) store(ctx context.Context, key, answer string) {
	if s.cache == nil || s.cfg.AnswerTTL <= 0 {
		return
	}

	ctx, cancel := s.cacheBudget(ctx)
	defer cancel()

	_, err := bounded(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.cache.Set(ctx, key, answer, s.cfg.AnswerTTL)
	})
	if err != nil {
		s.log.Warn("Failed to cache answer", zap.Error(err))
	}
}

func cacheKey(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
