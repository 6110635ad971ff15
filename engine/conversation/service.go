// Package conversation drives one user turn end to end: classify the text,
// route to confirmation or search, phrase the reply by confidence band, and
// record the exchange in the session transcript.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/engine/match"
	"github.com/arogyalabs/carefind/engine/scoring"
	"github.com/arogyalabs/carefind/engine/session"
	"github.com/arogyalabs/carefind/pkg/metrics"
)

const greeting = "Hi! I can check whether a hospital is in our network, or list hospitals in a city. How can I help?"

// Classifier extracts a structured intent from user text.
type Classifier interface {
	Classify(ctx context.Context, text string) domain.Intent
}

// Matcher runs the retrieval flows.
type Matcher interface {
	Confirm(ctx context.Context, hospitalName, city string) []domain.ScoredMatch
	Search(ctx context.Context, city string, limit int) ([]match.SearchHit, error)
}

// Reply is the outcome of one turn.
type Reply struct {
	Text    string               `json:"text"`
	Action  domain.Action        `json:"action"`
	Matches []domain.ScoredMatch `json:"matches,omitempty"`
	Hits    []match.SearchHit    `json:"hits,omitempty"`
}

// Service handles conversation turns.
type Service struct {
	classifier Classifier
	matcher    Matcher
	sessions   *session.Store
	log        *slog.Logger

	turnsByAction  func(action string) *metrics.Counter
	confirmsByBand func(band string) *metrics.Counter
	confirmSeconds *metrics.Histogram
}

// New creates a conversation service. reg may be nil to disable metrics.
func New(classifier Classifier, matcher Matcher, sessions *session.Store, reg *metrics.Registry, log *slog.Logger) *Service {
	s := &Service{
		classifier: classifier,
		matcher:    matcher,
		sessions:   sessions,
		log:        log,
	}
	if reg == nil {
		reg = metrics.New()
	}
	s.turnsByAction = func(action string) *metrics.Counter {
		return reg.Counter(metrics.WithLabels("carefind_turns_total", "action", action), "turns by intent action")
	}
	s.confirmsByBand = func(band string) *metrics.Counter {
		return reg.Counter(metrics.WithLabels("carefind_confirmations_total", "band", band), "confirmations by confidence band")
	}
	s.confirmSeconds = reg.Histogram("carefind_confirm_seconds", "confirmation latency", nil)
	return s
}

// HandleTurn processes one user message within a session. Matching-layer
// failures are already degraded below this point, so a reply always comes
// back.
func (s *Service) HandleTurn(ctx context.Context, sessionID, text string) Reply {
	s.sessions.AppendIfEmpty(sessionID, domain.Turn{Role: domain.RoleAssistant, Text: greeting})
	s.sessions.Append(sessionID, domain.Turn{Role: domain.RoleUser, Text: text})

	in := s.classifier.Classify(ctx, text)
	s.turnsByAction(string(in.Action)).Inc()

	var reply Reply
	switch in.Action {
	case domain.ActionConfirm:
		reply = s.confirm(ctx, in)
	case domain.ActionSearch:
		reply = s.search(ctx, in)
	default:
		reply = Reply{
			Action: domain.ActionOutOfScope,
			Text:   "I can only help with hospitals: ask me to check a hospital or list hospitals in a city.",
		}
	}

	s.sessions.Append(sessionID, domain.Turn{Role: domain.RoleAssistant, Text: reply.Text})
	return reply
}

func (s *Service) confirm(ctx context.Context, in domain.Intent) Reply {
	if in.HospitalName == "" {
		return Reply{
			Action: domain.ActionConfirm,
			Text:   "Which hospital would you like me to check?",
		}
	}

	start := time.Now()
	matches := s.matcher.Confirm(ctx, in.HospitalName, in.City)
	s.confirmSeconds.Since(start)

	reply := Reply{Action: domain.ActionConfirm, Matches: matches}
	if len(matches) == 0 {
		s.confirmsByBand("excluded").Inc()
		reply.Text = fmt.Sprintf("I could not find %s in our network.", in.HospitalName)
		return reply
	}

	top := matches[0]
	band := scoring.BandOf(top.TotalScore)
	s.confirmsByBand(band.String()).Inc()

	switch band {
	case scoring.BandConfirmed:
		reply.Text = fmt.Sprintf("Yes, %s%s is in our network.", top.Record.Name, placeSuffix(top.Record))
	case scoring.BandTentative:
		reply.Text = fmt.Sprintf("I found %s%s. Is this the one you mean?", top.Record.Name, placeSuffix(top.Record))
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Record.Name)
		}
		reply.Text = fmt.Sprintf("I could not find an exact match. Did you mean %s?", strings.Join(names, ", "))
	}
	return reply
}

func (s *Service) search(ctx context.Context, in domain.Intent) Reply {
	hits, err := s.matcher.Search(ctx, in.City, in.Limit)
	if err != nil {
		s.log.Warn("search turn failed", "city", in.City, "error", err)
		hits = nil
	}
	reply := Reply{Action: domain.ActionSearch, Hits: hits}
	if len(hits) == 0 {
		if in.City != "" {
			reply.Text = fmt.Sprintf("I could not find hospitals in %s.", in.City)
		} else {
			reply.Text = "I could not find any hospitals right now."
		}
		return reply
	}

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Name)
	}
	if in.City != "" {
		reply.Text = fmt.Sprintf("Hospitals in %s: %s.", in.City, strings.Join(names, ", "))
	} else {
		reply.Text = fmt.Sprintf("Some hospitals in our network: %s.", strings.Join(names, ", "))
	}
	return reply
}

func placeSuffix(rec domain.HospitalRecord) string {
	if rec.City != "" {
		return " in " + rec.City
	}
	return ""
}
