// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tokenpool multiplexes a set of API credentials across concurrent
// repository workers. Each API kind keeps its own available/in-use sets so
// that exhausting the GraphQL budget of a token does not block its REST use.
package tokenpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abcxyz/pkg/logging"
)

// Kind selects which API surface a token is acquired for.
type Kind string

const (
	KindGraphQL Kind = "graphql"
	KindREST    Kind = "rest"
)

// DefaultPollInterval is the sleep between acquisition attempts when every
// token is in use or deferred.
const DefaultPollInterval = 10 * time.Second

type entry struct {
	token     string
	notBefore time.Time
}

// Pool is a thread-safe token pool. A token registered with the pool is
// tracked independently per kind: it is either available (with a notBefore
// instant) or in use.
type Pool struct {
	pollInterval time.Duration
	now          func() time.Time

	mu        sync.Mutex
	acquireMu map[Kind]*sync.Mutex
	available map[Kind][]entry
	inUse     map[Kind]map[string]struct{}
}

// Option configures a Pool.
type Option func(*Pool)

// WithPollInterval overrides the sleep between acquisition attempts.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) { p.pollInterval = d }
}

// withNow overrides the clock. Only used in tests.
func withNow(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New creates a pool in which every token is immediately available for both
// API kinds.
func New(tokens []string, opts ...Option) *Pool {
	p := &Pool{
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		acquireMu:    make(map[Kind]*sync.Mutex),
		available:    make(map[Kind][]entry),
		inUse:        make(map[Kind]map[string]struct{}),
	}
	for _, kind := range []Kind{KindGraphQL, KindREST} {
		p.acquireMu[kind] = &sync.Mutex{}
		p.inUse[kind] = make(map[string]struct{})
		for _, t := range tokens {
			p.available[kind] = append(p.available[kind], entry{token: t})
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire blocks until a token of the given kind whose notBefore has elapsed
// becomes available, then moves it to the in-use set and returns it. Waiters
// for the same kind are serialized. Returns the context error when ctx is
// done first.
func (p *Pool) Acquire(ctx context.Context, kind Kind) (string, error) {
	logger := logging.FromContext(ctx)

	acquireMu, ok := p.acquireMu[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	acquireMu.Lock()
	defer acquireMu.Unlock()

	for {
		if token, ok := p.tryAcquire(kind); ok {
			return token, nil
		}
		logger.DebugContext(ctx, "no token available, waiting",
			"kind", kind,
			"interval", p.pollInterval.String())
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("token acquisition interrupted: %w", ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *Pool) tryAcquire(kind Kind) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	avail := p.available[kind]
	for i, e := range avail {
		if e.notBefore.After(now) {
			continue
		}
		p.available[kind] = append(avail[:i], avail[i+1:]...)
		p.inUse[kind][e.token] = struct{}{}
		return e.token, true
	}
	return "", false
}

// Release moves a token from the in-use set back to the available set with
// the supplied notBefore. Releasing a token that is not in use is an error.
func (p *Pool) Release(kind Kind, token string, notBefore time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	inUse, ok := p.inUse[kind]
	if !ok {
		return fmt.Errorf("unknown token kind %q", kind)
	}
	if _, ok := inUse[token]; !ok {
		return fmt.Errorf("token is not in use for kind %q", kind)
	}
	delete(inUse, token)
	p.available[kind] = append(p.available[kind], entry{token: token, notBefore: notBefore})
	return nil
}
