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
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

// Token is one coordinate on the hash ring. Murmur3Partitioner tokens fit in
// a signed 64-bit integer, but RandomPartitioner assigns tokens in [0, 2^127),
// so tokens are kept as arbitrary-precision integers.
type Token struct {
	*big.Int
}

func NewToken(i int64) Token {
	return Token{big.NewInt(i)}
}

func ParseToken(s string) (Token, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Token{}, errors.Errorf("invalid token value: %q", s)
	}
	return Token{v}, nil
}

func (t Token) Less(other Token) bool {
	return t.Cmp(other.Int) < 0
}

func (t Token) Equal(other Token) bool {
	return t.Cmp(other.Int) == 0
}

// Partitioner identifies the hashing scheme in use by the ring. It decides
// whether tokens are signed and the fixed width of their canonical text form.
type Partitioner int

const (
	// RandomPartitioner tokens are unsigned, up to 39 decimal digits.
	RandomPartitioner Partitioner = iota
	// Murmur3Partitioner tokens are signed 64-bit, 20 characters wide
	// including the sign.
	Murmur3Partitioner
)

const (
	randomTokenWidth  = 39
	murmur3TokenWidth = 20
)

// DetectPartitioner decides the partitioner family for a whole ring: the
// presence of any negative token implies Murmur3. The result is applied
// uniformly to all token formatting for the ring.
func DetectPartitioner(tokens []Token) Partitioner {
	for _, t := range tokens {
		if t.Sign() < 0 {
			return Murmur3Partitioner
		}
	}
	return RandomPartitioner
}

// Format renders a token zero-padded to the partitioner's fixed width, so
// that token strings sort the same way the tokens do.
func (p Partitioner) Format(t Token) string {
	if p == Murmur3Partitioner {
		return fmt.Sprintf("%020d", t.Int)
	}
	return fmt.Sprintf("%039d", t.Int)
}

func (p Partitioner) String() string {
	if p == Murmur3Partitioner {
		return "Murmur3Partitioner"
	}
	return "RandomPartitioner"
}
