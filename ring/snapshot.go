// Copyright 2025 StreamNative, Inc.
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

package ring

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Expected shape of the `nodetool ring` and `nodetool info -T` listings.
// These are a contract with nodetool's human-oriented output, stable across
// the Cassandra versions we target, and deliberately spelled out here rather
// than inferred: a parse failure against a newer layout should point straight
// at these constants.
const (
	// ringHeaderLines is the number of header lines preceding the first
	// token-owning row of `nodetool ring`.
	ringHeaderLines = 6
	// ringColumns is the exact column count of a token-owning row.
	ringColumns = 8
	// ringStateColumn holds the node state; joining nodes are excluded
	// because their tokens are not yet serving reads.
	ringStateColumn  = 3
	ringJoiningState = "Joining"
	// ringTokenColumn is the last column of a token-owning row.
	ringTokenColumn = ringColumns - 1

	// tokenMarker starts every token line of `nodetool info -T`.
	tokenMarker = "Token"
	// tokenField is the whitespace-separated field holding the token value.
	tokenField = 2
)

var (
	ErrEmptyRing = errors.New("ring listing contains no token-owning rows")

	// ErrTokenUnavailable indicates the node info listing carried no token
	// marker at all, so the target node's owned tokens cannot be discovered.
	ErrTokenUnavailable = errors.New("no token marker found in node info listing")
)

// Snapshot is an immutable view of all primary token assignments on the ring
// at one point in time. Tokens are unique and strictly ascending.
type Snapshot struct {
	tokens      []Token
	partitioner Partitioner
}

// NewSnapshot sorts and de-duplicates tokens and detects the partitioner
// family. An empty token set is rejected: every downstream operation assumes
// a non-empty ring.
func NewSnapshot(tokens []Token) (*Snapshot, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyRing
	}

	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})

	unique := sorted[:1]
	for _, t := range sorted[1:] {
		if !t.Equal(unique[len(unique)-1]) {
			unique = append(unique, t)
		}
	}

	return &Snapshot{
		tokens:      unique,
		partitioner: DetectPartitioner(unique),
	}, nil
}

func (s *Snapshot) Tokens() []Token {
	return s.tokens
}

func (s *Snapshot) Partitioner() Partitioner {
	return s.partitioner
}

// Termination returns the end of the range owned by token: the smallest ring
// token strictly greater than it. If token is the ring maximum, ownership
// wraps around to the ring's minimum. On a single-node ring the token
// terminates at itself.
func (s *Snapshot) Termination(token Token) Token {
	for _, t := range s.tokens {
		if token.Less(t) {
			return t
		}
	}
	return s.tokens[0]
}

// ParseRingStatus extracts all primary tokens from a `nodetool ring` listing.
// Rows belonging to joining nodes are skipped; rows that do not match the
// expected column count (the ownership summary, blank lines) are ignored.
func ParseRingStatus(out string) ([]Token, error) {
	var tokens []Token

	lines := strings.Split(out, "\n")
	if len(lines) <= ringHeaderLines {
		return nil, errors.Errorf("ring listing too short: %d lines", len(lines))
	}

	for _, line := range lines[ringHeaderLines:] {
		fields := strings.Fields(line)
		if len(fields) != ringColumns {
			continue
		}
		if fields[ringStateColumn] == ringJoiningState {
			continue
		}
		t, err := ParseToken(fields[ringTokenColumn])
		if err != nil {
			return nil, errors.Wrapf(err, "malformed ring row %q", line)
		}
		tokens = append(tokens, t)
	}

	return tokens, nil
}

// ParseNodeTokens extracts the tokens owned by the target node from a
// `nodetool info -T` listing. The absence of any token marker is a discovery
// failure, not an empty result.
func ParseNodeTokens(out string) ([]Token, error) {
	var tokens []Token

	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, tokenMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) <= tokenField {
			return nil, errors.Errorf("malformed token line %q", line)
		}
		t, err := ParseToken(fields[tokenField])
		if err != nil {
			return nil, errors.Wrapf(err, "malformed token line %q", line)
		}
		tokens = append(tokens, t)
	}

	if len(tokens) == 0 {
		return nil, ErrTokenUnavailable
	}
	return tokens, nil
}
