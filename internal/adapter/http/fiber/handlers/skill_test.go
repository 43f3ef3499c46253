package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/alexa-skills/internal/domain"
	"github.com/seu-repo/alexa-skills/internal/skill"
)

const testSkillID = "amzn1.ask.skill.test"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	log := zap.NewNop()

	echo, err := skill.Build(skill.Config{
		Name:    "echo",
		SkillID: testSkillID,
		Handlers: []skill.Handler{{
			Name:      "EchoIntent",
			Predicate: skill.IntentName("EchoIntent"),
			Handle: func(_ context.Context, in *skill.Input) (*domain.ResponseEnvelope, error) {
				return in.Response.Speak("you said " + in.Slot("text")).Build(), nil
			},
		}},
		Logger: log,
	})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log)})
	NewSkillHandler(log, echo).RegisterRoutes(app)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func envelope(appID, intent string) string {
	env := domain.RequestEnvelope{
		Version: "1.0",
		Session: &domain.Session{
			SessionID:   "session-1",
			Application: domain.Application{ApplicationID: appID},
		},
		Request: domain.Request{
			Type: domain.RequestTypeIntent,
			Intent: &domain.Intent{Name: intent, Slots: map[string]domain.Slot{
				"text": {Name: "text", Value: "hello"},
			}},
		},
	}
	raw, _ := json.Marshal(env)
	return string(raw)
}

func speech(t *testing.T, raw []byte) string {
	t.Helper()
	var resp domain.ResponseEnvelope
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp.SpeechText()
}

func TestSkillHandler_Invoke(t *testing.T) {
	app := newTestApp(t)

	status, body := post(t, app, "/skills/echo", envelope(testSkillID, "EchoIntent"))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "you said hello", speech(t, body))
}

func TestSkillHandler_UnhandledIntent(t *testing.T) {
	app := newTestApp(t)

	status, body := post(t, app, "/skills/echo", envelope(testSkillID, "UnknownIntent"))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, skill.DefaultMessages.Apology, speech(t, body))
}

func TestSkillHandler_MalformedBody(t *testing.T) {
	app := newTestApp(t)

	status, body := post(t, app, "/skills/echo", "{not json")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, skill.DefaultMessages.Apology, speech(t, body))
}

func TestSkillHandler_UnknownSkill(t *testing.T) {
	app := newTestApp(t)

	status, _ := post(t, app, "/skills/nope", envelope(testSkillID, "EchoIntent"))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestSkillHandler_ForeignSkillID(t *testing.T) {
	app := newTestApp(t)

	status, _ := post(t, app, "/skills/echo", envelope("amzn1.ask.skill.other", "EchoIntent"))
	assert.Equal(t, fiber.StatusForbidden, status)
}
