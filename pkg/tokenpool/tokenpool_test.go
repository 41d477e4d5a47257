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

package tokenpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abcxyz/pkg/testutil"
)

func TestPool_AcquireRelease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := New([]string{"t1"}, WithPollInterval(time.Millisecond))

	got, err := p.Acquire(ctx, KindGraphQL)
	if err != nil {
		t.Fatal(err)
	}
	if got != "t1" {
		t.Errorf("Acquire = %q, want %q", got, "t1")
	}

	// The same token is still available for the other kind.
	if _, err := p.Acquire(ctx, KindREST); err != nil {
		t.Fatal(err)
	}

	if err := p.Release(KindGraphQL, "t1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Acquire(ctx, KindGraphQL); err != nil {
		t.Fatal(err)
	}
}

func TestPool_ReleaseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    Kind
		token   string
		wantErr string
	}{
		{
			name:    "not_in_use",
			kind:    KindGraphQL,
			token:   "t1",
			wantErr: `token is not in use`,
		},
		{
			name:    "unknown_kind",
			kind:    Kind("soap"),
			token:   "t1",
			wantErr: `unknown token kind`,
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := New([]string{"t1"})
			err := p.Release(tc.kind, tc.token, time.Now())
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Errorf("Release got unexpected err: %s", diff)
			}
		})
	}
}

func TestPool_NotBeforeDefersReuse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	p := New([]string{"t1"}, WithPollInterval(time.Millisecond), withNow(clock))

	token, err := p.Acquire(ctx, KindGraphQL)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Release(KindGraphQL, token, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// The token is quarantined until its reset instant.
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(shortCtx, KindGraphQL); err == nil {
		t.Fatal("acquired a token before its notBefore elapsed")
	}

	now = now.Add(2 * time.Hour)
	if _, err := p.Acquire(ctx, KindGraphQL); err != nil {
		t.Fatal(err)
	}
}

func TestPool_ConcurrentSafety(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tokens := []string{"t1", "t2", "t3"}
	p := New(tokens, WithPollInterval(time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				token, err := p.Acquire(ctx, KindREST)
				if err != nil {
					t.Error(err)
					return
				}
				if err := p.Release(KindREST, token, time.Now()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// All tokens must have returned to the available set.
	p.mu.Lock()
	defer p.mu.Unlock()
	if got, want := len(p.available[KindREST]), len(tokens); got != want {
		t.Errorf("available tokens = %d, want %d", got, want)
	}
	if got := len(p.inUse[KindREST]); got != 0 {
		t.Errorf("in-use tokens = %d, want 0", got)
	}
	seen := make(map[string]struct{})
	for _, e := range p.available[KindREST] {
		if _, dup := seen[e.token]; dup {
			t.Errorf("token %q present twice in available set", e.token)
		}
		seen[e.token] = struct{}{}
	}
}
