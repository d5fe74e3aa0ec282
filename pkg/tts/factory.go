package tts

import "fmt"

// Provider names accepted by New.
const (
	NameEspeak = providerEspeak
	NameOpenAI = providerOpenAI
	NameNone   = "none"
)

// New builds the named provider. The OpenAI provider is chained in front of
// espeak so a network failure still produces speech.
func New(name string, opts ...Option) (Provider, error) {
	switch name {
	case NameEspeak:
		return NewEspeak(opts...)
	case NameOpenAI:
		cloud, err := NewOpenAI(opts...)
		if err != nil {
			return nil, err
		}
		local, err := NewEspeak(append(opts, WithVoice(""))...)
		if err != nil {
			return nil, err
		}
		cfg := DefaultConfig()
		cfg.Apply(opts...)
		return NewChainWithLogger(cfg.Logger, cloud, local)
	case NameNone, "":
		return nil, ErrProviderUnavailable
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
