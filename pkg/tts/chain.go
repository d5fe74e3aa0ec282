package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Chain speaks with the first provider that succeeds. New("openai") puts the
// cloud voice in front of local espeak so an alert is still spoken when the
// network drops.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain orders providers from preferred to last resort.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(nil, providers...)
}

// NewChainWithLogger is NewChain with a logger for fallback events.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

// Synthesize falls through the providers in order. A cancelled context
// stops the fallback: a late alert is worse than none.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error
	for i, p := range c.providers {
		audio, err := p.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("spoken by fallback voice", "provider", providerName(p), "text", text)
			}
			return audio, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i+1 < len(c.providers) {
			c.logger.Warn("voice failed, falling back",
				"provider", providerName(p),
				"next", providerName(c.providers[i+1]),
				"error", err,
			)
		}
	}
	return nil, &ChainError{Errors: errs}
}

// Health succeeds when at least one provider can speak.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", providerName(p), err))
	}
	return &ChainError{Errors: errs}
}

// Close closes every provider.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Providers returns the chain in fallback order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

func providerName(p Provider) string {
	switch p.(type) {
	case *OpenAI:
		return providerOpenAI
	case *Espeak:
		return providerEspeak
	default:
		return fmt.Sprintf("%T", p)
	}
}

// ChainError holds one error per provider tried.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no providers tried"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("tts chain: all %d voices failed, last: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
	}
}

// Is matches ErrAllProvidersFailed.
func (e *ChainError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

var _ Provider = (*Chain)(nil)
