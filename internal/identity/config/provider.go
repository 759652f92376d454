package config

import "sync/atomic"

// Provider hands out the current Settings snapshot. Consumers take exactly
// one snapshot per operation and treat it as immutable for the duration of
// that call; the next call after a reload sees the next snapshot.
type Provider struct {
	current atomic.Pointer[Settings]
}

// NewProvider validates the initial snapshot and returns a provider holding
// it. A validation error here is fatal to startup.
func NewProvider(initial Settings) (*Provider, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{}
	p.current.Store(&initial)
	return p, nil
}

// Snapshot returns the current settings value.
func (p *Provider) Snapshot() Settings {
	return *p.current.Load()
}

// Reload validates next and swaps it in. On validation failure the previous
// snapshot stays active and the error is returned; the application layer
// halts the process rather than keep serving with configuration it could
// not validate.
func (p *Provider) Reload(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	p.current.Store(&next)
	return nil
}
