package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/alexa-skills/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/alexa-skills/internal/mocks"
	"github.com/seu-repo/alexa-skills/internal/ports"
	"github.com/seu-repo/alexa-skills/internal/service/gemini"
	"github.com/seu-repo/alexa-skills/internal/skill"
)

const testSkillID = "amzn1.ask.skill.sim"

func newTestSimulator(t *testing.T, gen ports.TextGenerator, skillID string) *Simulator {
	t.Helper()
	log := zap.NewNop()

	s, err := gemini.NewService(gen, nil, gemini.Config{SkillID: testSkillID}, log).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(log),
	})
	handlers.NewSkillHandler(log, s).RegisterRoutes(app)

	ln := fasthttputil.NewInmemoryListener()
	go app.Listener(ln)
	t.Cleanup(func() {
		app.Shutdown()
		ln.Close()
	})

	client := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}

	return NewSimulator(&SimulatorConfig{
		ServerURL:    "http://simulator.test",
		Skill:        gemini.SkillName,
		SkillID:      skillID,
		QueryIntent:  gemini.QueryIntent,
		QuestionSlot: gemini.QuestionSlot,
	}, client, log)
}

func answering(text string) *mocks.MockTextGenerator {
	return &mocks.MockTextGenerator{
		GenerateFunc: func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return text, nil
		},
	}
}

func TestSimulator_Conversation(t *testing.T) {
	gen := answering("Light travels at about 300,000 kilometers per second.")
	sim := newTestSimulator(t, gen, testSkillID)
	firstSession := sim.sessionID

	launch, err := sim.Launch()
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if !strings.HasPrefix(launch.SpeechText(), "Welcome to Gemini") {
		t.Errorf("unexpected launch speech %q", launch.SpeechText())
	}
	if sim.newSession {
		t.Error("expected session to be marked as continuing after first request")
	}

	answer, err := sim.Ask("how fast is light")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.SpeechText() != "Light travels at about 300,000 kilometers per second." {
		t.Errorf("unexpected answer %q", answer.SpeechText())
	}
	if calls := gen.Calls(); len(calls) != 1 || calls[0].Prompt != "how fast is light" {
		t.Errorf("unexpected generator calls %+v", calls)
	}
	if sim.sessionID != firstSession {
		t.Error("expected session to stay open after an answer")
	}

	stop, err := sim.Execute("stop")
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !stop.EndsSession() {
		t.Error("expected stop to end the session")
	}
	if sim.sessionID == firstSession || !sim.newSession {
		t.Error("expected a fresh session after stop")
	}
}

func TestSimulator_SessionEnded(t *testing.T) {
	sim := newTestSimulator(t, answering("unused"), testSkillID)
	before := sim.sessionID

	resp, err := sim.Execute("end")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if resp.SpeechText() != "" {
		t.Errorf("expected no speech on session end, got %q", resp.SpeechText())
	}
	if sim.sessionID == before {
		t.Error("expected session reset after end")
	}
}

func TestSimulator_UnknownIntent(t *testing.T) {
	sim := newTestSimulator(t, answering("unused"), testSkillID)

	resp, err := sim.Execute("intent OrderPizzaIntent")
	if err != nil {
		t.Fatalf("intent failed: %v", err)
	}
	if resp.SpeechText() != skill.DefaultMessages.Apology {
		t.Errorf("expected apology, got %q", resp.SpeechText())
	}
}

func TestSimulator_ForeignSkillID(t *testing.T) {
	sim := newTestSimulator(t, answering("unused"), "amzn1.ask.skill.other")

	if _, err := sim.Launch(); err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("expected 403 error, got %v", err)
	}
}

func TestSimulator_RunInteractive(t *testing.T) {
	sim := newTestSimulator(t, answering("Paris."), testSkillID)

	var out bytes.Buffer
	sim.RunInteractive(strings.NewReader("launch\nwhat is the capital of france\nquit\nhelp\n"), &out)

	got := out.String()
	if !strings.Contains(got, "Alexa: Welcome to Gemini") {
		t.Errorf("expected welcome in output:\n%s", got)
	}
	if !strings.Contains(got, "Alexa: Paris.") {
		t.Errorf("expected answer in output:\n%s", got)
	}
	if strings.Contains(got, "You can ask me any question") {
		t.Errorf("expected commands after quit to be ignored:\n%s", got)
	}
}
