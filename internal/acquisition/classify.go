package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

// Rule maps a case-insensitive substring of tool output to a failure class.
type Rule struct {
	Pattern  string
	Reason   model.FailureReason
	Terminal bool
}

// Classification is the result of classifying one failure.
type Classification struct {
	Reason   model.FailureReason
	Terminal bool
	Rule     string
}

// DefaultRules is the built-in table. It is heuristic and not exhaustive;
// deployments extend it through configuration.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "private video", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "video is private", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "video unavailable", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "has been removed", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "no longer available", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "account associated with this video has been terminated", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "sign in to confirm your age", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "members-only", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "this live event will begin", Reason: model.ReasonUnavailable, Terminal: true},
		{Pattern: "premieres in", Reason: model.ReasonUnavailable, Terminal: true},

		{Pattern: "not available in your country", Reason: model.ReasonBlocked, Terminal: true},
		{Pattern: "made this video available in your country", Reason: model.ReasonBlocked, Terminal: true},
		{Pattern: "blocked it in your country", Reason: model.ReasonBlocked, Terminal: true},
		{Pattern: "geo restrict", Reason: model.ReasonBlocked, Terminal: true},

		{Pattern: "http error 429", Reason: model.ReasonRateLimited},
		{Pattern: "too many requests", Reason: model.ReasonRateLimited},
		{Pattern: "confirm you're not a bot", Reason: model.ReasonRateLimited},
		{Pattern: "confirm you’re not a bot", Reason: model.ReasonRateLimited},
		{Pattern: "rate limit", Reason: model.ReasonRateLimited},
		{Pattern: "rate-limit", Reason: model.ReasonRateLimited},

		{Pattern: "http error 403", Reason: model.ReasonTransport},
		{Pattern: "connection reset", Reason: model.ReasonTransport},
		{Pattern: "timed out", Reason: model.ReasonTransport},
		{Pattern: "temporary failure in name resolution", Reason: model.ReasonTransport},
		{Pattern: "remote end closed connection", Reason: model.ReasonTransport},
		{Pattern: "incompleteread", Reason: model.ReasonTransport},
	}
}

// ParseRules parses "reason=pattern" entries. Unavailable and blocked rules
// are terminal; rate_limited and transport rules are not.
func ParseRules(entries []string) ([]Rule, error) {
	var rules []Rule
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		reason, pattern, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(pattern) == "" {
			return nil, fmt.Errorf("parse rule %q: want reason=pattern", entry)
		}

		r := model.FailureReason(strings.TrimSpace(reason))
		switch r {
		case model.ReasonUnavailable, model.ReasonBlocked:
			rules = append(rules, Rule{Pattern: strings.TrimSpace(pattern), Reason: r, Terminal: true})
		case model.ReasonRateLimited, model.ReasonTransport:
			rules = append(rules, Rule{Pattern: strings.TrimSpace(pattern), Reason: r})
		default:
			return nil, fmt.Errorf("parse rule %q: unknown reason %q", entry, reason)
		}
	}
	return rules, nil
}

// Classifier turns acquisition errors into failure classes.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier. Extra rules are consulted before the defaults.
func NewClassifier(extra ...Rule) *Classifier {
	rules := make([]Rule, 0, len(extra)+len(DefaultRules()))
	for _, r := range extra {
		r.Pattern = strings.ToLower(r.Pattern)
		rules = append(rules, r)
	}
	rules = append(rules, DefaultRules()...)
	return &Classifier{rules: rules}
}

// Classify maps err to a failure class. Sentinels take precedence over text
// matching; anything unrecognized is a transient transport failure.
func (c *Classifier) Classify(err error) Classification {
	switch {
	case err == nil:
		return Classification{Reason: model.ReasonNone}
	case errors.Is(err, ErrUnavailable):
		return Classification{Reason: model.ReasonUnavailable, Terminal: true}
	case errors.Is(err, ErrBlocked):
		return Classification{Reason: model.ReasonBlocked, Terminal: true}
	case errors.Is(err, ErrRateLimited):
		return Classification{Reason: model.ReasonRateLimited}
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return Classification{Reason: model.ReasonTransport}
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.Stderr != "" {
		return c.ClassifyText(toolErr.Stderr)
	}
	return c.ClassifyText(err.Error())
}

// ClassifyText matches tool output against the rule table.
func (c *Classifier) ClassifyText(text string) Classification {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		if strings.Contains(lower, r.Pattern) {
			return Classification{Reason: r.Reason, Terminal: r.Terminal, Rule: r.Pattern}
		}
	}
	return Classification{Reason: model.ReasonTransport}
}
