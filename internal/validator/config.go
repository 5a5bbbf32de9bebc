package validator

import (
	"sync"

	"github.com/coves-labs/tokenguard/internal/jose/algorithm"
)

// Config holds the Validator's mutable policy. It is safe for concurrent
// use: every setter takes the same lock ValidateToken reads under.
type Config struct {
	mu                sync.RWMutex
	permittedAlgs     map[string]struct{}
	requireExp        bool
	requireNbf        bool
	timeLeewaySeconds int64
}

// NewConfig returns a Config with the default policy: permitted algorithms
// {RS256, RS384, RS512}, requireExp and requireNbf true, zero leeway.
func NewConfig() *Config {
	return &Config{
		permittedAlgs:     algorithm.DefaultPermitted(),
		requireExp:        true,
		requireNbf:        true,
		timeLeewaySeconds: 0,
	}
}

// SetPermittedAlgorithms replaces the entire permitted-algorithm set.
func (c *Config) SetPermittedAlgorithms(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permittedAlgs = set
}

// AddPermittedAlgorithm adds a single algorithm name to the permitted set.
func (c *Config) AddPermittedAlgorithm(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permittedAlgs[name] = struct{}{}
}

func (c *Config) isPermitted(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.permittedAlgs[name]
	return ok
}

// SetRequireExp sets whether a missing exp claim is rejected.
func (c *Config) SetRequireExp(require bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requireExp = require
}

// SetRequireNbf sets whether a missing nbf claim is rejected.
func (c *Config) SetRequireNbf(require bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requireNbf = require
}

// SetTimeLeewaySeconds sets the clock-skew tolerance applied to exp/nbf
// checks.
func (c *Config) SetTimeLeewaySeconds(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeLeewaySeconds = seconds
}

func (c *Config) snapshot() (requireExp, requireNbf bool, leeway int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requireExp, c.requireNbf, c.timeLeewaySeconds
}
