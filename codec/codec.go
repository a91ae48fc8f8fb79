// Package codec encodes and decodes batches of edit events for transport and
// import. Every decoded event is validated before it is returned.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
)

const (
	KindJSON = "json"
	KindYAML = "yaml"
)

// Batch is the envelope of an encoded event list.
type Batch struct {
	PlaylistID string               `json:"playlistId,omitempty" yaml:"playlistId,omitempty"`
	Events     []eventlog.EditEvent `json:"events" yaml:"events"`
}

// Codec converts event batches to and from one wire format.
type Codec interface {
	// Kind returns the unique identifier for this codec type
	Kind() string
	// ContentTypes lists the media types served by this codec, preferred first.
	ContentTypes() []string
	Encode(Batch) ([]byte, error)
	Decode([]byte) (Batch, error)
}

// Registry manages codec registration and lookup with thread safety.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates a new codec registry instance.
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Codec),
	}
}

// Register adds a codec to the registry using its Kind() as the key.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Kind()] = c
}

// Get retrieves a codec by its kind identifier.
func (r *Registry) Get(kind string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[kind]
	return c, ok
}

// ForContentType finds the codec serving a Content-Type header value.
// Parameters such as charset are ignored.
func (r *Registry) ForContentType(contentType string) (Codec, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.codecs {
		if slices.Contains(c.ContentTypes(), mt) {
			return c, true
		}
	}
	return nil, false
}

// Kinds returns all registered codec kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.codecs))
	for kind := range r.codecs {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// DefaultRegistry holds the json and yaml codecs.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(JSON{})
	DefaultRegistry.Register(YAML{})
}

// Register is a convenience function that registers a codec with the default registry.
func Register(c Codec) {
	DefaultRegistry.Register(c)
}

// Get is a convenience function that retrieves a codec from the default registry.
func Get(kind string) (Codec, bool) {
	return DefaultRegistry.Get(kind)
}

// ForContentType looks up a codec in the default registry.
func ForContentType(contentType string) (Codec, bool) {
	return DefaultRegistry.ForContentType(contentType)
}

// JSON encodes batches as JSON objects.
type JSON struct{}

func (JSON) Kind() string           { return KindJSON }
func (JSON) ContentTypes() []string { return []string{"application/json"} }

func (JSON) Encode(b Batch) ([]byte, error) {
	if b.Events == nil {
		b.Events = []eventlog.EditEvent{}
	}
	return json.Marshal(b)
}

func (JSON) Decode(data []byte) (Batch, error) {
	var b Batch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return Batch{}, decodeError(fmt.Errorf("json batch: %w", err))
	}
	return b, validate(b)
}

// YAML encodes batches as YAML documents.
type YAML struct{}

func (YAML) Kind() string { return KindYAML }
func (YAML) ContentTypes() []string {
	return []string{"application/yaml", "application/x-yaml", "text/yaml"}
}

func (YAML) Encode(b Batch) ([]byte, error) {
	return yaml.Marshal(b)
}

func (YAML) Decode(data []byte) (Batch, error) {
	var b Batch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return Batch{}, decodeError(fmt.Errorf("yaml batch: %w", err))
	}
	return b, validate(b)
}

func decodeError(err error) error {
	return errors.WrapOpComponentKind(err, errors.OpDecode, "codec", errors.KindValidationFailure)
}

// validate checks every event and fills a missing playlist id from the batch.
func validate(b Batch) error {
	for i := range b.Events {
		e := &b.Events[i]
		if e.PlaylistID == "" {
			e.PlaylistID = b.PlaylistID
		} else if b.PlaylistID != "" && e.PlaylistID != b.PlaylistID {
			return decodeError(
				fmt.Errorf("event %d belongs to playlist %s, batch is for %s", i, e.PlaylistID, b.PlaylistID))
		}
		if err := e.Validate(); err != nil {
			return decodeError(fmt.Errorf("event %d: %w", i, err))
		}
	}
	return nil
}
