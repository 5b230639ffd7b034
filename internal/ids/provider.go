// Package ids issues entity identifiers. Services take a Provider so tests
// can pin deterministic values.
package ids

import "github.com/google/uuid"

// Provider issues new entity identifiers.
type Provider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs a Provider that issues UUIDv7 identifiers.
func NewUUIDProvider() Provider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// Fixed returns a Provider that always issues the supplied identifiers in
// order, for deterministic tests.
func Fixed(values ...string) Provider {
	return &fixedProvider{values: values}
}

type fixedProvider struct {
	values []string
	index  int
}

func (p *fixedProvider) NewID() (string, error) {
	if p.index >= len(p.values) {
		return uuid.NewString(), nil
	}
	value := p.values[p.index]
	p.index++
	return value, nil
}
