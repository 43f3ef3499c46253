package skill

import (
	"context"

	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/domain"
)

// HandlerFunc produces the response for one request. A returned error is
// converted to the apology response by the skill's exception handler.
type HandlerFunc func(ctx context.Context, in *Input) (*domain.ResponseEnvelope, error)

// ExceptionHandler converts a handler failure into a response. It must
// always return a well-formed envelope.
type ExceptionHandler func(ctx context.Context, in *Input, err error) *domain.ResponseEnvelope

// Handler binds a predicate to a handler body.
type Handler struct {
	Name      string
	Predicate Predicate
	Handle    HandlerFunc
}

// Input is what a handler sees for one invocation.
type Input struct {
	Envelope *domain.RequestEnvelope
	Response *ResponseBuilder
	Messages Messages
	Logger   *zap.Logger

	skillName string
}

// Slot returns the value of a slot on the current intent, "" when unfilled.
func (in *Input) Slot(name string) string {
	return in.Envelope.SlotValue(name)
}

// Apology builds the generic "something went wrong" response, session open.
func (in *Input) Apology() *domain.ResponseEnvelope {
	return apology(in.Messages)
}

// SkillName is the name the skill was built with.
func (in *Input) SkillName() string {
	return in.skillName
}

// Messages are the fixed texts spoken by the built-in handlers.
type Messages struct {
	Welcome   string
	Help      string
	Goodbye   string
	Apology   string
	Reprompt  string
	CardTitle string
}

// DefaultMessages are used for any Messages field left empty.
var DefaultMessages = Messages{
	Welcome:  "Welcome. You can ask me anything.",
	Help:     "You can ask me any question.",
	Goodbye:  "Goodbye!",
	Apology:  "Sorry, something went wrong. Please try again.",
	Reprompt: "What would you like to ask?",
}

func (m Messages) withDefaults() Messages {
	if m.Welcome == "" {
		m.Welcome = DefaultMessages.Welcome
	}
	if m.Help == "" {
		m.Help = DefaultMessages.Help
	}
	if m.Goodbye == "" {
		m.Goodbye = DefaultMessages.Goodbye
	}
	if m.Apology == "" {
		m.Apology = DefaultMessages.Apology
	}
	if m.Reprompt == "" {
		m.Reprompt = DefaultMessages.Reprompt
	}
	return m
}
