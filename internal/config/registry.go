package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/llm"
	"github.com/MrWong99/krishi/pkg/provider/stt"
	"github.com/MrWong99/krishi/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Kind names a provider category.
type Kind string

const (
	KindLLM      Kind = "llm"
	KindSTT      Kind = "stt"
	KindTTS      Kind = "tts"
	KindRecorder Kind = "recorder"
	KindPlayer   Kind = "player"
)

// Factory builds a provider of type T from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

type factories[T any] map[string]Factory[T]

func (f factories[T]) create(kind Kind, entry ProviderEntry) (T, error) {
	factory, ok := f[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func (f factories[T]) names() []string {
	out := make([]string, 0, len(f))
	for name := range f {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	llm      factories[llm.Provider]
	stt      factories[stt.Provider]
	tts      factories[tts.Provider]
	recorder factories[audio.Recorder]
	player   factories[audio.Player]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:      make(factories[llm.Provider]),
		stt:      make(factories[stt.Provider]),
		tts:      make(factories[tts.Provider]),
		recorder: make(factories[audio.Recorder]),
		player:   make(factories[audio.Player]),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = f
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = f
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = f
}

// RegisterRecorder registers a microphone capture factory under name.
func (r *Registry) RegisterRecorder(name string, f Factory[audio.Recorder]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder[name] = f
}

// RegisterPlayer registers an audio output factory under name.
func (r *Registry) RegisterPlayer(name string, f Factory[audio.Player]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.player[name] = f
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(KindLLM, entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create(KindSTT, entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(KindTTS, entry)
}

// CreateRecorder instantiates a recorder using the factory registered under entry.Name.
func (r *Registry) CreateRecorder(entry ProviderEntry) (audio.Recorder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recorder.create(KindRecorder, entry)
}

// CreatePlayer instantiates a player using the factory registered under entry.Name.
func (r *Registry) CreatePlayer(entry ProviderEntry) (audio.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.player.create(KindPlayer, entry)
}

// Names returns the sorted names registered for kind.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case KindLLM:
		return r.llm.names()
	case KindSTT:
		return r.stt.names()
	case KindTTS:
		return r.tts.names()
	case KindRecorder:
		return r.recorder.names()
	case KindPlayer:
		return r.player.names()
	}
	return nil
}
