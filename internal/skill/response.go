package skill

import "github.com/seu-repo/alexa-skills/internal/domain"

// ResponseBuilder assembles a ResponseEnvelope. A fresh builder is handed to
// every handler invocation.
type ResponseBuilder struct {
	resp domain.Response
}

func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

func (b *ResponseBuilder) Speak(text string) *ResponseBuilder {
	b.resp.OutputSpeech = &domain.OutputSpeech{Type: domain.SpeechTypePlain, Text: text}
	return b
}

// Reprompt is spoken when the user stays silent with the session open.
func (b *ResponseBuilder) Reprompt(text string) *ResponseBuilder {
	b.resp.Reprompt = &domain.Reprompt{
		OutputSpeech: domain.OutputSpeech{Type: domain.SpeechTypePlain, Text: text},
	}
	return b
}

func (b *ResponseBuilder) SimpleCard(title, content string) *ResponseBuilder {
	b.resp.Card = &domain.Card{Type: domain.CardTypeSimple, Title: title, Content: content}
	return b
}

func (b *ResponseBuilder) EndSession(end bool) *ResponseBuilder {
	b.resp.ShouldEndSession = &end
	return b
}

func (b *ResponseBuilder) Build() *domain.ResponseEnvelope {
	return &domain.ResponseEnvelope{
		Version:  domain.EnvelopeVersion,
		Response: b.resp,
	}
}

func apology(m Messages) *domain.ResponseEnvelope {
	return NewResponseBuilder().
		Speak(m.Apology).
		Reprompt(m.Reprompt).
		EndSession(false).
		Build()
}
