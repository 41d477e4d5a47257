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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Repository identifies one repository to mine.
type Repository struct {
	Owner string
	Name  string
}

// Lines at most this long cannot hold a repository URL and are skipped,
// which tolerates blank lines and stray separators in hand-edited lists.
const minURLLength = 18

// LoadRepositoryList reads the newline-delimited repository URL file at
// path. An empty list is an error, mining nothing is never intended.
func LoadRepositoryList(path string) ([]Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository list: %w", err)
	}
	defer f.Close()

	repos, err := ParseRepositoryList(f)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("repository list %s names no repositories", path)
	}
	return repos, nil
}

// ParseRepositoryList extracts owner and name from every repository URL in
// r. The owner and name are the third and fourth path segments of the URL.
func ParseRepositoryList(r io.Reader) ([]Repository, error) {
	var repos []Repository
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) <= minURLLength {
			continue
		}
		segments := strings.Split(line, "/")
		if len(segments) < 5 || segments[3] == "" || segments[4] == "" {
			return nil, fmt.Errorf("malformed repository url %q", line)
		}
		repos = append(repos, Repository{
			Owner: segments[3],
			Name:  strings.TrimSuffix(segments[4], ".git"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repository list: %w", err)
	}
	return repos, nil
}
