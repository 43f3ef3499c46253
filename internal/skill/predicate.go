package skill

import (
	"fmt"
	"strings"

	"github.com/seu-repo/alexa-skills/internal/domain"
)

// key is the dispatch discriminator: the request type, plus the intent name
// for IntentRequests.
type key struct {
	requestType string
	intent      string
}

func (k key) String() string {
	if k.intent == "" {
		return k.requestType
	}
	return k.requestType + "/" + k.intent
}

func keyOf(env *domain.RequestEnvelope) key {
	if env.Request.Type == domain.RequestTypeIntent {
		return key{requestType: domain.RequestTypeIntent, intent: env.IntentName()}
	}
	return key{requestType: env.Request.Type}
}

// Predicate is the closed set of discriminators a handler answers to.
// Build it with RequestType or IntentName.
type Predicate struct {
	keys []key
}

// RequestType matches non-intent requests of the given type.
func RequestType(requestType string) Predicate {
	return Predicate{keys: []key{{requestType: requestType}}}
}

// IntentName matches IntentRequests carrying any of the given intent names.
func IntentName(names ...string) Predicate {
	p := Predicate{keys: make([]key, 0, len(names))}
	for _, n := range names {
		p.keys = append(p.keys, key{requestType: domain.RequestTypeIntent, intent: n})
	}
	return p
}

// Or matches whatever either predicate matches.
func (p Predicate) Or(other Predicate) Predicate {
	keys := make([]key, 0, len(p.keys)+len(other.keys))
	keys = append(keys, p.keys...)
	keys = append(keys, other.keys...)
	return Predicate{keys: keys}
}

// Matches reports whether env is selected by p.
func (p Predicate) Matches(env *domain.RequestEnvelope) bool {
	k := keyOf(env)
	for _, pk := range p.keys {
		if pk == k {
			return true
		}
	}
	return false
}

func (p Predicate) validate() error {
	if len(p.keys) == 0 {
		return fmt.Errorf("empty predicate")
	}
	for _, k := range p.keys {
		if strings.TrimSpace(k.requestType) == "" {
			return fmt.Errorf("predicate with empty request type")
		}
		if k.requestType == domain.RequestTypeIntent && strings.TrimSpace(k.intent) == "" {
			return fmt.Errorf("intent predicate with empty intent name")
		}
	}
	return nil
}

func (p Predicate) String() string {
	parts := make([]string, len(p.keys))
	for i, k := range p.keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, "|")
}
