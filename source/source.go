package source

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/sourceregistry/errors"
)

// Well-known capability tags consumed by the default connectivity policy.
const (
	TagRequiresLocalNetwork = "requires-local-network"
	TagRequiresInternet     = "requires-internet"
)

// MaxNameLength bounds source names for validation
const MaxNameLength = 256

// Metadata holds descriptive information about a source beyond its
// capability tags. It plays no role in visibility decisions.
type Metadata struct {
	Description string `json:"description,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Config describes a source to be created with New. It maps 1:1 to the
// fields of Source; the zero value of ID requests a generated identifier.
type Config struct {
	ID       string   // Unique identifier; generated (UUID) when empty
	Name     string   // Human-readable name (e.g., "upnp-media-server")
	Tags     []string // Capability tags; immutable after creation
	Visible  bool     // Initial visibility
	Metadata Metadata // Optional descriptive metadata
}

// Source is a registrable media content source. Identity and tags are
// fixed at creation; visibility is mutated only by the Notifier during
// an environment-change cycle.
type Source struct {
	id       string
	name     string
	tags     map[string]struct{}
	metadata Metadata

	mu      sync.RWMutex
	visible bool
}

// New creates a Source from the given config. The name is validated
// against the same character rules the registry enforces elsewhere;
// an empty ID is replaced with a generated UUID.
func New(cfg Config) (*Source, error) {
	if err := ValidateName(cfg.Name); err != nil {
		return nil, errors.Wrap(err, "Source", "New", "name validation")
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	tags := make(map[string]struct{}, len(cfg.Tags))
	for _, tag := range cfg.Tags {
		if tag == "" {
			return nil, errors.WrapInvalid(
				errors.ErrInvalidSource, "Source", "New", "empty tag validation")
		}
		tags[tag] = struct{}{}
	}

	return &Source{
		id:       id,
		name:     cfg.Name,
		tags:     tags,
		metadata: cfg.Metadata,
		visible:  cfg.Visible,
	}, nil
}

// ID returns the unique identifier of the source
func (s *Source) ID() string {
	return s.id
}

// Name returns the human-readable name of the source
func (s *Source) Name() string {
	return s.name
}

// Metadata returns the descriptive metadata attached at creation
func (s *Source) Metadata() Metadata {
	return s.metadata
}

// HasTag reports whether the source carries the given capability tag
func (s *Source) HasTag(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

// Tags returns a sorted copy of the source's capability tags
func (s *Source) Tags() []string {
	tags := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Visible reports the current visibility of the source
func (s *Source) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// setVisible updates visibility. It is called only by the Notifier
// during the apply phases of an environment-change cycle.
func (s *Source) setVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

// ValidateName validates source names. Names must be non-empty, bounded
// in length, and restricted to alphanumerics plus dash, underscore and dot.
func ValidateName(name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidSource, "Source", "ValidateName", "empty name")
	}
	if len(name) > MaxNameLength {
		return errors.WrapInvalid(errors.ErrInvalidSource, "Source", "ValidateName", "name too long")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return errors.WrapInvalid(
				errors.ErrInvalidSource, "Source", "ValidateName", "invalid name characters")
		}
	}
	return nil
}
