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

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestPool_RunsEveryRepository(t *testing.T) {
	t.Parallel()

	repos := []Repository{
		{Owner: "octo", Name: "a"},
		{Owner: "octo", Name: "b"},
		{Owner: "octo", Name: "c"},
		{Owner: "octo", Name: "d"},
	}

	var mu sync.Mutex
	var seen []string
	var active, peak int

	cfg := validConfig()
	pool := NewPool(cfg, nil, nil,
		WithReapInterval(5*time.Millisecond),
		withRunFunc(func(ctx context.Context, repo Repository) error {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			seen = append(seen, repo.Owner+"/"+repo.Name)
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return nil
		}))

	if err := pool.Run(context.Background(), repos); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(seen)
	if got, want := len(seen), len(repos); got != want {
		t.Errorf("ran %d repositories, want %d: %q", got, want, seen)
	}
	if peak > cfg.Threads {
		t.Errorf("peak concurrency = %d, cap is %d", peak, cfg.Threads)
	}
}

func TestPool_FailedWorkerDoesNotBlockQueue(t *testing.T) {
	t.Parallel()

	repos := []Repository{
		{Owner: "octo", Name: "broken"},
		{Owner: "octo", Name: "fine"},
	}

	var mu sync.Mutex
	ran := make(map[string]struct{})

	cfg := validConfig()
	cfg.Threads = 1
	pool := NewPool(cfg, nil, nil,
		WithReapInterval(time.Millisecond),
		withRunFunc(func(ctx context.Context, repo Repository) error {
			mu.Lock()
			ran[repo.Name] = struct{}{}
			mu.Unlock()
			if repo.Name == "broken" {
				return fmt.Errorf("collection exploded")
			}
			return nil
		}))

	if err := pool.Run(context.Background(), repos); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"broken", "fine"} {
		if _, ok := ran[name]; !ok {
			t.Errorf("repository %q never ran", name)
		}
	}
}

func TestPool_CancellationStopsScheduling(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	cfg := validConfig()
	cfg.Threads = 1
	pool := NewPool(cfg, nil, nil,
		WithReapInterval(time.Hour),
		withRunFunc(func(ctx context.Context, repo Repository) error {
			cancel()
			return nil
		}))

	repos := []Repository{
		{Owner: "octo", Name: "a"},
		{Owner: "octo", Name: "b"},
	}
	if err := pool.Run(ctx, repos); err == nil {
		t.Error("canceled pool returned nil error")
	}
}
