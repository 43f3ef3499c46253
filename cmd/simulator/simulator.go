package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/domain"
)

// SimulatorConfig holds the simulator configuration
type SimulatorConfig struct {
	ServerURL string
	Skill     string
	SkillID   string
	Locale    string
	Timeout   time.Duration

	// QueryIntent and QuestionSlot name the freeform intent used by Ask.
	QueryIntent  string
	QuestionSlot string
}

// Simulator plays the voice platform: it fabricates request envelopes and
// posts them to a skill endpoint, keeping one session open until a response
// ends it.
type Simulator struct {
	config *SimulatorConfig
	client *fasthttp.Client
	log    *zap.Logger

	mu         sync.Mutex
	userID     string
	sessionID  string
	newSession bool
}

func NewSimulator(config *SimulatorConfig, client *fasthttp.Client, log *zap.Logger) *Simulator {
	if client == nil {
		client = &fasthttp.Client{Name: "alexa-skill-simulator"}
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Locale == "" {
		config.Locale = "en-US"
	}

	s := &Simulator{
		config: config,
		client: client,
		log:    log,
		userID: "amzn1.ask.account." + uuid.NewString(),
	}
	s.resetSession()
	return s
}

func (s *Simulator) endpoint() string {
	return strings.TrimRight(s.config.ServerURL, "/") + "/skills/" + s.config.Skill
}

func (s *Simulator) Launch() (*domain.ResponseEnvelope, error) {
	return s.send(s.envelope(domain.Request{Type: domain.RequestTypeLaunch}))
}

// Ask sends a freeform question through the query intent.
func (s *Simulator) Ask(question string) (*domain.ResponseEnvelope, error) {
	return s.Intent(s.config.QueryIntent, map[string]string{s.config.QuestionSlot: question})
}

func (s *Simulator) Intent(name string, slots map[string]string) (*domain.ResponseEnvelope, error) {
	intent := &domain.Intent{Name: name, ConfirmationStatus: "NONE"}
	if len(slots) > 0 {
		intent.Slots = make(map[string]domain.Slot, len(slots))
		for k, v := range slots {
			intent.Slots[k] = domain.Slot{Name: k, Value: v}
		}
	}
	return s.send(s.envelope(domain.Request{Type: domain.RequestTypeIntent, Intent: intent}))
}

// End reports the session as ended by the platform. The session is reset
// whatever the skill answers.
func (s *Simulator) End(reason string) (*domain.ResponseEnvelope, error) {
	defer s.resetSession()
	return s.send(s.envelope(domain.Request{Type: domain.RequestTypeSessionEnded, Reason: reason}))
}

func (s *Simulator) envelope(req domain.Request) *domain.RequestEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.RequestID = "amzn1.echo-api.request." + uuid.NewString()
	req.Timestamp = time.Now().UTC().Format(time.RFC3339)
	req.Locale = s.config.Locale

	app := domain.Application{ApplicationID: s.config.SkillID}
	user := domain.User{UserID: s.userID}

	env := &domain.RequestEnvelope{
		Version: domain.EnvelopeVersion,
		Session: &domain.Session{
			New:         s.newSession,
			SessionID:   s.sessionID,
			Application: app,
			User:        user,
		},
		Context: &domain.Context{System: domain.System{Application: app, User: user}},
		Request: req,
	}
	s.newSession = false
	return env
}

func (s *Simulator) send(env *domain.RequestEnvelope) (*domain.ResponseEnvelope, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.endpoint())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	start := time.Now()
	if err := s.client.DoTimeout(req, resp, s.config.Timeout); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	s.log.Debug("Skill responded",
		zap.String("request_type", env.Request.Type),
		zap.String("request_id", env.Request.RequestID),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.Body())
	}

	var out domain.ResponseEnvelope
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.EndsSession() {
		s.resetSession()
	}
	return &out, nil
}

func (s *Simulator) resetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = "amzn1.echo-api.session." + uuid.NewString()
	s.newSession = true
}

// Execute runs one simulator command line and returns the response.
func (s *Simulator) Execute(line string) (*domain.ResponseEnvelope, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "launch", "open":
		return s.Launch()
	case "ask":
		return s.Ask(arg)
	case "help":
		return s.Intent(domain.IntentHelp, nil)
	case "stop":
		return s.Intent(domain.IntentStop, nil)
	case "cancel":
		return s.Intent(domain.IntentCancel, nil)
	case "end":
		if arg == "" {
			arg = "USER_INITIATED"
		}
		return s.End(arg)
	case "intent":
		if arg == "" {
			return nil, fmt.Errorf("usage: intent <name>")
		}
		return s.Intent(arg, nil)
	default:
		// Bare text is a question.
		return s.Ask(strings.TrimSpace(line))
	}
}

// RunInteractive reads commands from in until EOF or "quit".
func (s *Simulator) RunInteractive(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "quit", "exit":
			return
		default:
			resp, err := s.Execute(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				printResponse(out, resp)
			}
		}
		fmt.Fprint(out, "> ")
	}
}

func printResponse(out io.Writer, resp *domain.ResponseEnvelope) {
	if text := resp.SpeechText(); text != "" {
		fmt.Fprintf(out, "Alexa: %s\n", text)
	} else {
		fmt.Fprintln(out, "Alexa: (no speech)")
	}
	if card := resp.Response.Card; card != nil {
		fmt.Fprintf(out, "  [card] %s\n", card.Title)
	}
	if resp.EndsSession() {
		fmt.Fprintln(out, "  [session ended]")
	}
}
