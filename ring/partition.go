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
	"math/big"

	"github.com/pkg/errors"
)

var ErrInvalidStepCount = errors.New("step count must be positive")

// SubRange is one contiguous slice of an owned range. End is exclusive in
// the sense that it is the next sub-range's Start: consecutive sub-ranges
// share their boundary token, with no gap and no overlap.
type SubRange struct {
	Start Token
	End   Token
}

// Sequence produces the sub-ranges of one owned range, in order, on demand.
// It is single-use: restarting means calling Partition again.
type Sequence struct {
	end       *big.Int
	increment *big.Int
	cursor    *big.Int
	single    bool
	done      bool
}

// Partition splits [start, end] into up to steps contiguous sub-ranges whose
// union is exactly [start, end].
//
// When the range holds too few addressable positions to justify the requested
// cut count (end − start ≤ steps + 1, which covers wrapped ranges where the
// termination precedes the owner token), the sequence degenerates to the
// single pair (start, end). Otherwise each sub-range spans
// floor((end − start) / steps) positions, and a final shorter sub-range
// covers whatever remainder the integer division left before end.
func Partition(start, end Token, steps int) (*Sequence, error) {
	if steps <= 0 {
		return nil, ErrInvalidStepCount
	}

	span := new(big.Int).Sub(end.Int, start.Int)
	if span.Cmp(big.NewInt(int64(steps)+1)) <= 0 {
		return &Sequence{
			cursor: start.Int,
			end:    end.Int,
			single: true,
		}, nil
	}

	return &Sequence{
		cursor:    start.Int,
		end:       end.Int,
		increment: new(big.Int).Quo(span, big.NewInt(int64(steps))),
	}, nil
}

// Next returns the next sub-range, or ok == false once the sequence is
// exhausted.
func (s *Sequence) Next() (sub SubRange, ok bool) {
	if s.done {
		return SubRange{}, false
	}

	if s.single {
		s.done = true
		return SubRange{Start: Token{s.cursor}, End: Token{s.end}}, true
	}

	next := new(big.Int).Add(s.cursor, s.increment)
	if next.Cmp(s.end) > 0 {
		// The walk has passed end: emit the remainder tail, unless the
		// previous step landed exactly on end.
		s.done = true
		if s.cursor.Cmp(s.end) < 0 {
			return SubRange{Start: Token{s.cursor}, End: Token{s.end}}, true
		}
		return SubRange{}, false
	}

	sub = SubRange{Start: Token{s.cursor}, End: Token{next}}
	s.cursor = next
	return sub, true
}
