// Package dialogue implements the scripted question flow that collects a
// user's Polymarket position: event link, YES/NO side, entry price. The flow
// is a pure state machine; transports apply the returned Outcome.
package dialogue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// State is the position in the scripted dialogue.
type State int

const (
	StateIdle State = iota
	StateAwaitingLink
	StateAwaitingChoice
	StateAwaitingPrice
	StateCompleted
)

// Answers accumulates the user's replies as the dialogue advances.
type Answers struct {
	EventLink string
	Choice    string // "YES" or "NO"
	Price     float64
}

// Session tracks one user's dialogue. LastSeen feeds the idle-session sweep.
type Session struct {
	Active   bool
	State    State
	Answers  Answers
	LastSeen time.Time
}

// Outcome is the result of applying one incoming message to a session.
// Replies are sent in order. When RunAnalysis is set, Description holds the
// composed trade description and the caller runs the analysis pipeline.
type Outcome struct {
	Session     Session
	Replies     []string
	RunAnalysis bool
	Description string
}

const (
	welcomeReply = "Welcome to the Polymarket Agent! 🚀\n\nAnswer the questions below in order.\n\n1️⃣ Send the link of the Polymarket event you bought:"

	choicePrompt = "2️⃣ Did you buy YES or NO?"
	pricePrompt  = "3️⃣ At what price did you buy? (a number between 0 and 100, e.g. 75)"

	invalidChoiceReply = "❌ Please reply with YES or NO only"
	invalidPriceReply  = "❌ Please enter a valid number between 0 and 100"
	notStartedReply    = "Please use /start to begin"
	restartReply       = "Please use /start to begin a new analysis"
)

// Start resets the session and begins a new collection flow. Issued mid-flow
// it discards everything collected so far.
func Start(s Session) Outcome {
	s.Active = true
	s.State = StateAwaitingLink
	s.Answers = Answers{}
	return Outcome{Session: s, Replies: []string{welcomeReply}}
}

// Handle applies one incoming text message to the session. Invalid input
// never advances the state or mutates the stored answers.
func Handle(s Session, text string) Outcome {
	if !s.Active {
		return Outcome{Session: s, Replies: []string{notStartedReply}}
	}

	switch s.State {
	case StateAwaitingLink:
		s.Answers.EventLink = text
		s.State = StateAwaitingChoice
		return Outcome{Session: s, Replies: []string{
			fmt.Sprintf("✅ Event link saved: %s\n\n%s", text, choicePrompt),
		}}

	case StateAwaitingChoice:
		choice := strings.ToUpper(strings.TrimSpace(text))
		if choice != "YES" && choice != "NO" {
			return Outcome{Session: s, Replies: []string{invalidChoiceReply}}
		}
		s.Answers.Choice = choice
		s.State = StateAwaitingPrice
		return Outcome{Session: s, Replies: []string{
			fmt.Sprintf("✅ Choice saved: %s\n\n%s", choice, pricePrompt),
		}}

	case StateAwaitingPrice:
		price, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil || math.IsNaN(price) || price < 0 || price > 100 {
			return Outcome{Session: s, Replies: []string{invalidPriceReply}}
		}
		s.Answers.Price = price
		s.State = StateCompleted
		return Outcome{
			Session: s,
			Replies: []string{
				fmt.Sprintf("✅ Entry price saved: %s — analyzing your position, hang tight…", formatPrice(price)),
			},
			RunAnalysis: true,
			Description: Describe(s.Answers),
		}
	}

	return Outcome{Session: s, Replies: []string{restartReply}}
}

// Describe composes the trade description handed to the analysis pipeline.
func Describe(a Answers) string {
	return fmt.Sprintf("I bought a polymarket event at %s for %s on %s",
		formatPrice(a.Price), a.Choice, a.EventLink)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
