package source

import (
	"fmt"

	"github.com/c360/sourceregistry/errors"
)

// Environment represents the external connectivity context relevant to
// visibility decisions. It is read-only input to the policy; the
// registry does not own or detect it.
type Environment struct {
	LocalNetwork bool `json:"local_network"` // local network reachable
	Internet     bool `json:"internet"`      // internet reachable
}

// Decision is the outcome of classifying one source against an environment
type Decision int

const (
	// NoOp means the source's visibility already matches the environment
	NoOp Decision = iota
	// Show means the source should become visible
	Show
	// Hide means the source should become hidden
	Hide
)

// String returns the string representation of Decision
func (d Decision) String() string {
	switch d {
	case NoOp:
		return "noop"
	case Show:
		return "show"
	case Hide:
		return "hide"
	default:
		return "unknown"
	}
}

// Policy classifies a source against an environment. Implementations
// must be pure: no side effects, no I/O, no mutation of the source.
type Policy interface {
	Classify(s *Source, env Environment) (Decision, error)
}

// PolicyFunc adapts an ordinary function to the Policy interface
type PolicyFunc func(s *Source, env Environment) (Decision, error)

// Classify calls the underlying function
func (f PolicyFunc) Classify(s *Source, env Environment) (Decision, error) {
	return f(s, env)
}

// Requirement names the environment dimension a capability tag depends on
type Requirement string

const (
	// RequireLocalNetwork binds a tag to local network reachability
	RequireLocalNetwork Requirement = "local-network"
	// RequireInternet binds a tag to internet reachability
	RequireInternet Requirement = "internet"
)

// Satisfied reports whether the requirement is met by the environment
func (r Requirement) Satisfied(env Environment) (bool, error) {
	switch r {
	case RequireLocalNetwork:
		return env.LocalNetwork, nil
	case RequireInternet:
		return env.Internet, nil
	default:
		return false, errors.WrapInvalid(
			fmt.Errorf("%w: unknown requirement %q", errors.ErrInvalidConfig, string(r)),
			"Requirement", "Satisfied", "requirement lookup")
	}
}

// Rule binds one capability tag to one environment requirement
type Rule struct {
	Tag      string
	Requires Requirement
}

// ConnectivityPolicy decides visibility from connectivity-requirement
// tags. A source becomes visible when any of its tagged requirements is
// met and hidden only when none of them is: show takes precedence over
// hide, so a source is never hidden while one of its satisfied
// requirements still justifies showing it. Sources carrying none of the
// policy's tags are never touched.
type ConnectivityPolicy struct {
	rules []Rule
}

// NewConnectivityPolicy creates a policy from explicit tag rules
func NewConnectivityPolicy(rules ...Rule) (*ConnectivityPolicy, error) {
	if len(rules) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrMissingConfig, "ConnectivityPolicy", "NewConnectivityPolicy", "rules validation")
	}
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		if rule.Tag == "" {
			return nil, errors.WrapInvalid(
				errors.ErrInvalidConfig, "ConnectivityPolicy", "NewConnectivityPolicy", "empty tag validation")
		}
		if _, dup := seen[rule.Tag]; dup {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate rule for tag %q", errors.ErrInvalidConfig, rule.Tag),
				"ConnectivityPolicy", "NewConnectivityPolicy", "duplicate rule check")
		}
		seen[rule.Tag] = struct{}{}
	}
	return &ConnectivityPolicy{rules: rules}, nil
}

// DefaultConnectivityPolicy returns a policy over the well-known
// connectivity tags.
func DefaultConnectivityPolicy() *ConnectivityPolicy {
	policy, err := NewConnectivityPolicy(
		Rule{Tag: TagRequiresLocalNetwork, Requires: RequireLocalNetwork},
		Rule{Tag: TagRequiresInternet, Requires: RequireInternet},
	)
	if err != nil {
		// Static rules above are valid; reaching here is a programming error.
		panic(err)
	}
	return policy
}

// Classify implements Policy
func (p *ConnectivityPolicy) Classify(s *Source, env Environment) (Decision, error) {
	if s == nil {
		return NoOp, errors.WrapInvalid(
			errors.ErrInvalidSource, "ConnectivityPolicy", "Classify", "source validation")
	}

	matched := false
	anySatisfied := false
	anyUnsatisfied := false

	for _, rule := range p.rules {
		if !s.HasTag(rule.Tag) {
			continue
		}
		matched = true

		satisfied, err := rule.Requires.Satisfied(env)
		if err != nil {
			return NoOp, errors.Wrap(err, "ConnectivityPolicy", "Classify", "requirement evaluation")
		}
		if satisfied {
			anySatisfied = true
		} else {
			anyUnsatisfied = true
		}
	}

	if !matched {
		return NoOp, nil
	}

	visible := s.Visible()
	switch {
	case !visible && anySatisfied:
		return Show, nil
	case visible && anyUnsatisfied && !anySatisfied:
		// Hide only when no satisfied requirement remains: show wins
		// over hide for contradictory tag combinations.
		return Hide, nil
	default:
		return NoOp, nil
	}
}
