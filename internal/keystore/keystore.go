package keystore

import (
	"context"
	"os"
	"sync"
)

// Key names for the three vendor credentials a session may carry.
const (
	KeyRecognition = "huggingface_token"
	KeyChat        = "openai_api_key"
	KeySynthesis   = "elevenlabs_api_key"
)

// Names lists the known key names in a stable order.
func Names() []string {
	return []string{KeyRecognition, KeyChat, KeySynthesis}
}

// Descriptions maps key names to user-facing guidance.
var Descriptions = map[string]string{
	KeyRecognition: "Required for speech recognition",
	KeyChat:        "Required for chat functionality",
	KeySynthesis:   "Required for text-to-speech",
}

// envFallbacks maps key names to the environment variables consulted when
// a session has not submitted the key.
var envFallbacks = map[string]string{
	KeyRecognition: "HUGGINGFACE_TOKEN",
	KeyChat:        "OPENAI_API_KEY",
	KeySynthesis:   "ELEVENLABS_API_KEY",
}

// KeyStore holds vendor credentials for one session, in process memory only.
// Last write wins; values are never persisted.
type KeyStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty key store
func New() *KeyStore {
	return &KeyStore{values: make(map[string]string)}
}

// Set stores or overwrites a key. Empty values are ignored so a partial
// submission does not clear keys set earlier.
func (s *KeyStore) Set(name, value string) {
	if value == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Get returns the stored value for a key name
func (s *KeyStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok && v != ""
}

// Status reports which keys are present without revealing values
func (s *KeyStore) Status() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := make(map[string]bool, len(envFallbacks))
	for _, name := range Names() {
		status[name] = s.values[name] != ""
	}
	return status
}

// Reset clears all stored keys
func (s *KeyStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
}

// AllSet reports whether every known key is present
func (s *KeyStore) AllSet() bool {
	for _, present := range s.Status() {
		if !present {
			return false
		}
	}
	return true
}

// Missing returns the names of keys that are not set
func (s *KeyStore) Missing() []string {
	missing := []string{}
	status := s.Status()
	for _, name := range Names() {
		if !status[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// Registry maps session identifiers to their key stores so concurrent
// sessions stay isolated. Requests without a session token share the
// default store, preserving single-user behavior.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*KeyStore
	defaultStore *KeyStore
}

// NewRegistry creates a registry with an empty default session
func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]*KeyStore),
		defaultStore: New(),
	}
}

// Session returns the key store for a session id, creating it on first use
func (r *Registry) Session(id string) *KeyStore {
	if id == "" {
		return r.defaultStore
	}

	r.mu.RLock()
	store, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return store
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.sessions[id]; ok {
		return store
	}
	store = New()
	r.sessions[id] = store
	return store
}

// Default returns the store used by requests without a session token
func (r *Registry) Default() *KeyStore {
	return r.defaultStore
}

type contextKey struct{}

// WithStore attaches a session's key store to the request context
func WithStore(ctx context.Context, store *KeyStore) context.Context {
	return context.WithValue(ctx, contextKey{}, store)
}

// FromContext returns the key store attached to the context, if any
func FromContext(ctx context.Context) (*KeyStore, bool) {
	store, ok := ctx.Value(contextKey{}).(*KeyStore)
	return store, ok
}

// Lookup resolves a credential for the current request: the session value
// when submitted, otherwise the process environment.
func Lookup(ctx context.Context, name string) string {
	if store, ok := FromContext(ctx); ok {
		if v, ok := store.Get(name); ok {
			return v
		}
	}
	if env, ok := envFallbacks[name]; ok {
		return os.Getenv(env)
	}
	return ""
}
