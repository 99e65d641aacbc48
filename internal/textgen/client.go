// Package textgen provides the text-generation client used by the
// document producers: an ordered list of providers tried in sequence,
// with the first success winning.
package textgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Request is a single text-generation call.
type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Provider is one generative-text backend. MaxOutputTokens is the hard
// output ceiling; the failover clamps Request.MaxTokens to it per call.
type Provider interface {
	Name() string
	MaxOutputTokens() int
	Generate(ctx context.Context, req Request) (string, error)
}

// StreamingProvider is a Provider that can also deliver output
// incrementally.
type StreamingProvider interface {
	Provider
	GenerateStream(ctx context.Context, req Request, onChunk func(string)) (string, error)
}

// Client is the producer-facing generation interface.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	GenerateStream(ctx context.Context, req Request, onChunk func(string)) (string, error)
}

// Attempt records one failed provider call.
type Attempt struct {
	Provider string
	Err      error
}

// ProviderError aggregates the failures of every provider in the chain.
type ProviderError struct {
	Attempts []Attempt
}

func (e *ProviderError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Provider, a.Err)
	}
	return "textgen: all providers failed: " + strings.Join(parts, "; ")
}

// Failover implements Client over an ordered provider chain. Each
// provider gets exactly one attempt per call; there is no retry of a
// provider that already failed.
type Failover struct {
	providers   []Provider
	callTimeout time.Duration
}

// NewFailover builds a failover client. callTimeout bounds each
// individual provider attempt; zero means no per-attempt bound.
func NewFailover(callTimeout time.Duration, providers ...Provider) *Failover {
	return &Failover{providers: providers, callTimeout: callTimeout}
}

// Generate tries each provider in order and returns the first non-empty
// result. Empty output counts as a failure.
func (f *Failover) Generate(ctx context.Context, req Request) (string, error) {
	var attempts []Attempt
	for _, p := range f.providers {
		text, err := f.attempt(ctx, p, req)
		if err == nil {
			return text, nil
		}
		zap.L().Warn("provider failed, falling over",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		attempts = append(attempts, Attempt{Provider: p.Name(), Err: err})
	}
	if len(attempts) == 0 {
		return "", eris.New("textgen: no providers configured")
	}
	return "", &ProviderError{Attempts: attempts}
}

// GenerateStream streams from the first provider when it supports
// streaming. A mid-stream failure discards the partial output and falls
// straight to the remaining providers in blocking mode; the failed
// provider is not retried.
func (f *Failover) GenerateStream(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	if len(f.providers) == 0 {
		return "", eris.New("textgen: no providers configured")
	}

	var attempts []Attempt
	rest := f.providers

	if sp, ok := f.providers[0].(StreamingProvider); ok {
		text, err := f.attemptStream(ctx, sp, req, onChunk)
		if err == nil {
			return text, nil
		}
		zap.L().Warn("streaming provider failed, falling over",
			zap.String("provider", sp.Name()),
			zap.Error(err),
		)
		attempts = append(attempts, Attempt{Provider: sp.Name(), Err: err})
		rest = f.providers[1:]
	}

	for _, p := range rest {
		text, err := f.attempt(ctx, p, req)
		if err == nil {
			if onChunk != nil {
				onChunk(text)
			}
			return text, nil
		}
		zap.L().Warn("provider failed, falling over",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		attempts = append(attempts, Attempt{Provider: p.Name(), Err: err})
	}
	return "", &ProviderError{Attempts: attempts}
}

func (f *Failover) attempt(ctx context.Context, p Provider, req Request) (string, error) {
	ctx, cancel := f.bound(ctx)
	defer cancel()

	text, err := p.Generate(ctx, clamp(req, p))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", eris.New("empty completion")
	}
	return text, nil
}

func (f *Failover) attemptStream(ctx context.Context, p StreamingProvider, req Request, onChunk func(string)) (string, error) {
	ctx, cancel := f.bound(ctx)
	defer cancel()

	text, err := p.GenerateStream(ctx, clamp(req, p), onChunk)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", eris.New("empty completion")
	}
	return text, nil
}

func (f *Failover) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.callTimeout)
}

func clamp(req Request, p Provider) Request {
	if max := p.MaxOutputTokens(); max > 0 && req.MaxTokens > max {
		req.MaxTokens = max
	}
	return req
}
