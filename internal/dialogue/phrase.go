package dialogue

import "math/rand"

// PhraseProvider supplies the greeting and escalation wording. Selection
// must be deterministic under a fixed seed so tests can assert exact
// responses.
type PhraseProvider interface {
	Greeting() string
	Escalation() string
}

var greetingPhrases = []string{
	"Thank you for calling City Healthcare Center.",
	"Hello, you've reached City Healthcare Center.",
	"Welcome to City Healthcare Center. I'm your virtual assistant.",
}

var escalationPhrases = []string{
	"I'm having trouble understanding. Let me connect you with our front desk.",
	"I'm sorry, I wasn't able to help with that. Transferring you to one of our staff now.",
	"Let me get a member of our team to assist you.",
}

// Phrases is the default rand-backed provider.
type Phrases struct {
	rng *rand.Rand
}

// NewPhrases creates a provider with its own seeded source.
func NewPhrases(seed int64) *Phrases {
	return &Phrases{rng: rand.New(rand.NewSource(seed))}
}

func (p *Phrases) Greeting() string {
	return greetingPhrases[p.rng.Intn(len(greetingPhrases))]
}

func (p *Phrases) Escalation() string {
	return escalationPhrases[p.rng.Intn(len(escalationPhrases))]
}

// FixedPhrases always returns the first variant. Used in tests.
type FixedPhrases struct{}

func (FixedPhrases) Greeting() string   { return greetingPhrases[0] }
func (FixedPhrases) Escalation() string { return escalationPhrases[0] }
