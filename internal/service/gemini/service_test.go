package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/domain"
	"github.com/seu-repo/alexa-skills/internal/mocks"
	"github.com/seu-repo/alexa-skills/internal/ports"
	"github.com/seu-repo/alexa-skills/internal/skill"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func queryRequest(question string) *domain.RequestEnvelope {
	slots := map[string]domain.Slot{
		QuestionSlot: {Name: QuestionSlot, Value: question},
	}
	return &domain.RequestEnvelope{
		Version: "1.0",
		Request: domain.Request{
			Type:      domain.RequestTypeIntent,
			RequestID: "amzn1.echo-api.request.test",
			Intent:    &domain.Intent{Name: QueryIntent, Slots: slots},
		},
	}
}

func newTestSkill(t *testing.T, gen ports.TextGenerator, cache ports.Cache, cfg Config) *skill.Skill {
	t.Helper()
	s, err := NewService(gen, cache, cfg, newTestLogger()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s
}

func TestQuery_Answer(t *testing.T) {
	// Arrange
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected generator call to carry a deadline")
			}
			return "About 299,792 kilometers per second.", nil
		},
	}
	s := newTestSkill(t, gen, nil, Config{SystemInstruction: "be brief"})

	// Act
	resp := s.Invoke(context.Background(), queryRequest("what is the speed of light"))

	// Assert
	if got := resp.SpeechText(); got != "About 299,792 kilometers per second." {
		t.Errorf("unexpected speech %q", got)
	}
	if resp.EndsSession() {
		t.Error("expected session to stay open")
	}
	if resp.Response.Card == nil || resp.Response.Card.Title != cardTitle {
		t.Errorf("expected %q card, got %+v", cardTitle, resp.Response.Card)
	}
	if resp.Response.Reprompt == nil {
		t.Error("expected reprompt")
	}

	calls := gen.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 generator call, got %d", len(calls))
	}
	if calls[0].Prompt != "what is the speed of light" {
		t.Errorf("unexpected prompt %q", calls[0].Prompt)
	}
	if calls[0].SystemInstruction != "be brief" {
		t.Errorf("unexpected system instruction %q", calls[0].SystemInstruction)
	}
}

func TestQuery_EmptySlot(t *testing.T) {
	gen := &mocks.MockTextGenerator{}
	s := newTestSkill(t, gen, nil, Config{})

	envs := []*domain.RequestEnvelope{
		queryRequest(""),
		queryRequest("   "),
		{Request: domain.Request{Type: domain.RequestTypeIntent, Intent: &domain.Intent{Name: QueryIntent}}},
	}

	for _, env := range envs {
		resp := s.Invoke(context.Background(), env)
		if resp.SpeechText() != noQuestionText {
			t.Errorf("expected clarification prompt, got %q", resp.SpeechText())
		}
		if resp.EndsSession() {
			t.Error("expected session to stay open")
		}
	}

	if n := gen.CallCount(); n != 0 {
		t.Errorf("expected no generator calls, got %d", n)
	}
}

func TestQuery_GeneratorError(t *testing.T) {
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return "", errors.New("429 resource exhausted")
		},
	}
	s := newTestSkill(t, gen, nil, Config{})

	resp := s.Invoke(context.Background(), queryRequest("what is quantum computing"))
	if resp.SpeechText() != skill.DefaultMessages.Apology {
		t.Errorf("expected apology, got %q", resp.SpeechText())
	}
	if resp.EndsSession() {
		t.Error("expected session to stay open")
	}
	if n := gen.CallCount(); n != 1 {
		t.Errorf("expected exactly one call without retry, got %d", n)
	}
}

func TestQuery_Timeout(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, req ports.GenerateRequest) (string, error)
	}{
		{"honours context", func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}},
		{"ignores context", func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			time.Sleep(500 * time.Millisecond)
			return "too late", nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mocks.MockTextGenerator{GenerateFunc: tt.fn}
			s := newTestSkill(t, gen, nil, Config{Timeout: 50 * time.Millisecond})

			start := time.Now()
			resp := s.Invoke(context.Background(), queryRequest("slow question"))
			elapsed := time.Since(start)

			if resp.SpeechText() != skill.DefaultMessages.Apology {
				t.Errorf("expected apology, got %q", resp.SpeechText())
			}
			if elapsed > 400*time.Millisecond {
				t.Errorf("expected invoke to return near the deadline, took %s", elapsed)
			}
		})
	}
}

func TestQuery_SlowCacheStaysWithinTimeout(t *testing.T) {
	waitForCancel := func(t *testing.T) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected cache call to carry a deadline")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		}
	}

	tests := []struct {
		name  string
		setup func(t *testing.T, cache *mocks.MockCache)
	}{
		{"lookup honours context", func(t *testing.T, cache *mocks.MockCache) {
			wait := waitForCancel(t)
			cache.GetFunc = func(ctx context.Context, key string) (string, error) {
				return "", wait(ctx)
			}
		}},
		{"lookup ignores context", func(t *testing.T, cache *mocks.MockCache) {
			cache.GetFunc = func(ctx context.Context, key string) (string, error) {
				time.Sleep(time.Second)
				return "", ports.ErrCacheMiss
			}
		}},
		{"store honours context", func(t *testing.T, cache *mocks.MockCache) {
			wait := waitForCancel(t)
			cache.SetFunc = func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				return wait(ctx)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			gen := &mocks.MockTextGenerator{
				GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
					return "ok.", nil
				},
			}
			cache := mocks.NewMockCache()
			tt.setup(t, cache)
			s := newTestSkill(t, gen, cache, Config{Timeout: 100 * time.Millisecond, AnswerTTL: time.Minute})

			// Act
			start := time.Now()
			resp := s.Invoke(context.Background(), queryRequest("slow cache"))
			elapsed := time.Since(start)

			// Assert
			if elapsed > 400*time.Millisecond {
				t.Errorf("expected invoke to return within the timeout, took %s", elapsed)
			}
			if resp.SpeechText() != "ok." {
				t.Errorf("expected generator to keep most of the budget, got %q", resp.SpeechText())
			}
		})
	}
}

func TestQuery_CacheAndGeneratorShareDeadline(t *testing.T) {
	var cacheDeadline, genDeadline time.Time
	cache := mocks.NewMockCache()
	cache.GetFunc = func(ctx context.Context, key string) (string, error) {
		cacheDeadline, _ = ctx.Deadline()
		return "", ports.ErrCacheMiss
	}
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			genDeadline, _ = ctx.Deadline()
			return "ok.", nil
		},
	}
	s := newTestSkill(t, gen, cache, Config{Timeout: time.Second})

	s.Invoke(context.Background(), queryRequest("shared deadline"))

	if cacheDeadline.IsZero() || genDeadline.IsZero() {
		t.Fatal("expected both calls to carry a deadline")
	}
	if !cacheDeadline.Before(genDeadline) {
		t.Errorf("expected cache budget %s to end before the request deadline %s", cacheDeadline, genDeadline)
	}
	if genDeadline.Sub(cacheDeadline) > time.Second {
		t.Errorf("expected both deadlines to derive from one timeout")
	}
}

func TestQuery_SanitizesAnswer(t *testing.T) {
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return "**Light** travels at\n\n- about 300,000 km/s", nil
		},
	}
	s := newTestSkill(t, gen, nil, Config{})

	resp := s.Invoke(context.Background(), queryRequest("how fast is light"))
	if got := resp.SpeechText(); got != "Light travels at about 300,000 km/s" {
		t.Errorf("unexpected speech %q", got)
	}
}

func TestQuery_BlankAnswerIsFailure(t *testing.T) {
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return "  ** ", nil
		},
	}
	s := newTestSkill(t, gen, nil, Config{})

	resp := s.Invoke(context.Background(), queryRequest("say nothing"))
	if resp.SpeechText() != skill.DefaultMessages.Apology {
		t.Errorf("expected apology, got %q", resp.SpeechText())
	}
}

func TestQuery_AnswerCache(t *testing.T) {
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return "Paris.", nil
		},
	}
	cache := mocks.NewMockCache()
	s := newTestSkill(t, gen, cache, Config{AnswerTTL: time.Minute})

	first := s.Invoke(context.Background(), queryRequest("What is the capital of France"))
	second := s.Invoke(context.Background(), queryRequest("what is the  capital of france"))

	if first.SpeechText() != "Paris." || second.SpeechText() != "Paris." {
		t.Errorf("unexpected answers %q / %q", first.SpeechText(), second.SpeechText())
	}
	if n := gen.CallCount(); n != 1 {
		t.Errorf("expected second question to be served from cache, got %d calls", n)
	}
	if cache.Len() != 1 {
		t.Errorf("expected one cached answer, got %d", cache.Len())
	}
}

func TestQuery_CacheFailureFallsThrough(t *testing.T) {
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return "Still answered.", nil
		},
	}
	cache := mocks.NewMockCache()
	cache.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", errors.New("connection refused")
	}
	cache.SetFunc = func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
		return errors.New("connection refused")
	}
	s := newTestSkill(t, gen, cache, Config{AnswerTTL: time.Minute})

	resp := s.Invoke(context.Background(), queryRequest("anything"))
	if resp.SpeechText() != "Still answered." {
		t.Errorf("unexpected speech %q", resp.SpeechText())
	}
}

func TestSkill_LaunchAndHelp(t *testing.T) {
	s := newTestSkill(t, &mocks.MockTextGenerator{}, nil, Config{})

	launch := s.Invoke(context.Background(), &domain.RequestEnvelope{
		Request: domain.Request{Type: domain.RequestTypeLaunch},
	})
	if launch.SpeechText() != welcomeText {
		t.Errorf("unexpected launch speech %q", launch.SpeechText())
	}
	if launch.EndsSession() {
		t.Error("expected launch to keep the session open")
	}
	if launch.Response.Card == nil || launch.Response.Card.Title != "Gemini" {
		t.Errorf("expected Gemini card, got %+v", launch.Response.Card)
	}

	help := s.Invoke(context.Background(), &domain.RequestEnvelope{
		Request: domain.Request{Type: domain.RequestTypeIntent, Intent: &domain.Intent{Name: domain.IntentHelp}},
	})
	if help.SpeechText() != helpText {
		t.Errorf("unexpected help speech %q", help.SpeechText())
	}
	if help.Response.Card == nil || help.Response.Card.Title != "Gemini Help" {
		t.Errorf("expected Gemini Help card, got %+v", help.Response.Card)
	}
}

func TestSkill_Idempotent(t *testing.T) {
	gen := &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return "Deterministic answer.", nil
		},
	}
	s := newTestSkill(t, gen, nil, Config{})

	raw, _ := json.Marshal(queryRequest("same question"))
	first := s.Handle(context.Background(), raw)
	second := s.Handle(context.Background(), raw)

	if !bytes.Equal(first, second) {
		t.Errorf("expected identical envelopes:\n%s\n%s", first, second)
	}
}

func TestCacheKey_Normalizes(t *testing.T) {
	if cacheKey("Hello   World") != cacheKey(" hello world ") {
		t.Error("expected case and whitespace to be normalized")
	}
	if cacheKey("hello") == cacheKey("world") {
		t.Error("expected different questions to map to different keys")
	}
}
