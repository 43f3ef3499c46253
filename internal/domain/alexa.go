package domain

// Request types sent by the voice platform.
const (
	RequestTypeLaunch       = "LaunchRequest"
	RequestTypeIntent       = "IntentRequest"
	RequestTypeSessionEnded = "SessionEndedRequest"
)

// Built-in intents every skill receives.
const (
	IntentHelp   = "AMAZON.HelpIntent"
	IntentCancel = "AMAZON.CancelIntent"
	IntentStop   = "AMAZON.StopIntent"
)

const (
	EnvelopeVersion = "1.0"
	SpeechTypePlain = "PlainText"
	CardTypeSimple  = "Simple"
)

// RequestEnvelope is the JSON body the platform POSTs to a skill endpoint.
// https://developer.amazon.com/en-US/docs/alexa/custom-skills/request-and-response-json-reference.html
type RequestEnvelope struct {
	Version string   `json:"version"`
	Session *Session `json:"session,omitempty"`
	Context *Context `json:"context,omitempty"`
	Request Request  `json:"request"`
}

type Session struct {
	New         bool                   `json:"new"`
	SessionID   string                 `json:"sessionId"`
	Application Application            `json:"application"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	User        User                   `json:"user"`
}

type Application struct {
	ApplicationID string `json:"applicationId"`
}

type User struct {
	UserID string `json:"userId"`
}

type Context struct {
	System System `json:"System"`
}

type System struct {
	Application Application `json:"application"`
	User        User        `json:"user"`
}

// Request is the tagged variant: Type selects which fields are meaningful.
type Request struct {
	Type      string  `json:"type"`
	RequestID string  `json:"requestId"`
	Timestamp string  `json:"timestamp,omitempty"`
	Locale    string  `json:"locale,omitempty"`
	Intent    *Intent `json:"intent,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Error     *Error  `json:"error,omitempty"`
}

type Intent struct {
	Name               string          `json:"name"`
	ConfirmationStatus string          `json:"confirmationStatus,omitempty"`
	Slots              map[string]Slot `json:"slots,omitempty"`
}

// Slot value is empty when the user did not fill it.
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Error is reported on SessionEndedRequest when the session ended abnormally.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ApplicationID returns the skill id the request was addressed to.
func (e *RequestEnvelope) ApplicationID() string {
	if e.Context != nil && e.Context.System.Application.ApplicationID != "" {
		return e.Context.System.Application.ApplicationID
	}
	if e.Session != nil {
		return e.Session.Application.ApplicationID
	}
	return ""
}

// IntentName returns the intent name for IntentRequests and "" otherwise.
func (e *RequestEnvelope) IntentName() string {
	if e.Request.Type != RequestTypeIntent || e.Request.Intent == nil {
		return ""
	}
	return e.Request.Intent.Name
}

// SlotValue returns the value of the named slot, or "" when absent or unfilled.
func (e *RequestEnvelope) SlotValue(name string) string {
	if e.Request.Intent == nil {
		return ""
	}
	return e.Request.Intent.Slots[name].Value
}

// ResponseEnvelope is the JSON body returned to the platform.
type ResponseEnvelope struct {
	Version           string                 `json:"version"`
	SessionAttributes map[string]interface{} `json:"sessionAttributes,omitempty"`
	Response          Response               `json:"response"`
}

type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession *bool         `json:"shouldEndSession,omitempty"`
}

type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Card struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}

// SpeechText returns the spoken text or "".
func (r *ResponseEnvelope) SpeechText() string {
	if r.Response.OutputSpeech == nil {
		return ""
	}
	return r.Response.OutputSpeech.Text
}

// EndsSession reports whether the response closes the session. An unset
// flag leaves the session open.
func (r *ResponseEnvelope) EndsSession() bool {
	return r.Response.ShouldEndSession != nil && *r.Response.ShouldEndSession
}
