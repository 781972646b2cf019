// Copyright 2026 The yuzu Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds TOML-decodable tunables for the arbiter stack,
// mirroring the shape of the teacher's containerd-shim config loader.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Tunables controls the bounded-retry and tree-branching knobs exposed by
// pkg/memory and pkg/arbiter. Callers that don't need to override anything
// should use Default.
type Tunables struct {
	// CASMaxRetries bounds the exclusive-monitor retry loop in
	// memory.UserAtomicOps before it logs contention and keeps retrying;
	// spec.md §9 leaves the retry loop unbounded, so this only controls
	// when a warning starts firing, not whether the loop gives up.
	CASMaxRetries int `toml:"cas_max_retries"`

	// CASBackoffInitial and CASBackoffMax bound the exponential backoff
	// applied between exclusive-monitor retries.
	CASBackoffInitial time.Duration `toml:"cas_backoff_initial"`
	CASBackoffMax     time.Duration `toml:"cas_backoff_max"`

	// WaitTreeDegree is the branching factor passed to btree.NewG when
	// constructing a WaitTree.
	WaitTreeDegree int `toml:"wait_tree_degree"`
}

// Default returns the tunables used when no config file is supplied.
func Default() Tunables {
	return Tunables{
		CASMaxRetries:     32,
		CASBackoffInitial: 50 * time.Microsecond,
		CASBackoffMax:     5 * time.Millisecond,
		WaitTreeDegree:    16,
	}
}

// Load decodes tunables from a TOML file at path, starting from Default
// and overwriting only the fields present in the file.
func Load(path string) (Tunables, error) {
	t := Default()
	_, err := toml.DecodeFile(path, &t)
	return t, err
}
