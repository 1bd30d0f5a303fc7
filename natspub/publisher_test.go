package natspub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sourceregistry/source"
)

func TestNew_Defaults(t *testing.T) {
	p := New(nil, "", nil)
	assert.False(t, p.Enabled())
	assert.Equal(t, "sourceregistry.source.shown", p.Subject(KindShown))
	assert.Equal(t, "sourceregistry.source.hidden", p.Subject(KindHidden))
}

func TestSubject_CustomPrefix(t *testing.T) {
	p := New(nil, "music", nil)
	assert.Equal(t, "music.source.shown", p.Subject(KindShown))
}

// A disabled publisher is a safe no-op subscriber.
func TestPublisher_DisabledIsInert(t *testing.T) {
	p := New(nil, "", nil)

	s, err := source.New(source.Config{
		ID: "radio", Name: "internet-radio", Tags: []string{source.TagRequiresInternet},
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		p.SourceShown(s)
		p.SourceHidden(s)
	})
}

func TestEvent_WireFormat(t *testing.T) {
	event := Event{
		Kind:      KindShown,
		SourceID:  "radio",
		Name:      "internet-radio",
		Tags:      []string{source.TagRequiresInternet},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"kind": "shown",
		"source_id": "radio",
		"name": "internet-radio",
		"tags": ["requires-internet"],
		"timestamp": "2026-01-02T03:04:05Z"
	}`, string(data))
}
