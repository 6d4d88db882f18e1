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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, start, end Token, steps int) []SubRange {
	t.Helper()
	seq, err := Partition(start, end, steps)
	require.NoError(t, err)

	var out []SubRange
	for {
		sub, ok := seq.Next()
		if !ok {
			break
		}
		out = append(out, sub)
	}
	return out
}

func TestPartitionInvalidStepCount(t *testing.T) {
	for _, steps := range []int{0, -1} {
		_, err := Partition(NewToken(0), NewToken(100), steps)
		assert.ErrorIs(t, err, ErrInvalidStepCount)
	}
}

func TestPartitionEvenSplit(t *testing.T) {
	// ring = [10, 20, 30], owned token 20 terminates at 30
	subs := collect(t, NewToken(20), NewToken(30), 5)

	require.Len(t, subs, 5)
	expected := [][2]int64{{20, 22}, {22, 24}, {24, 26}, {26, 28}, {28, 30}}
	for i, exp := range expected {
		assert.True(t, NewToken(exp[0]).Equal(subs[i].Start))
		assert.True(t, NewToken(exp[1]).Equal(subs[i].End))
	}
}

func TestPartitionRemainderTail(t *testing.T) {
	// span 100 over 3 steps: increment 33, tail (99, 100)
	subs := collect(t, NewToken(0), NewToken(100), 3)

	require.Len(t, subs, 4)
	assert.True(t, NewToken(99).Equal(subs[3].Start))
	assert.True(t, NewToken(100).Equal(subs[3].End))
}

func TestPartitionDegenerate(t *testing.T) {
	tests := []struct {
		name  string
		start int64
		end   int64
		steps int
	}{
		{"span-below-steps", 0, 50, 100},
		{"span-equals-steps-plus-one", 0, 101, 100},
		{"empty-span", 5, 5, 100},
		{"wrapped-range", 30, 10, 100},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			subs := collect(t, NewToken(test.start), NewToken(test.end), test.steps)
			require.Len(t, subs, 1)
			assert.True(t, NewToken(test.start).Equal(subs[0].Start))
			assert.True(t, NewToken(test.end).Equal(subs[0].End))
		})
	}
}

func TestPartitionExactCoverage(t *testing.T) {
	tests := []struct {
		name  string
		start int64
		end   int64
		steps int
	}{
		{"even", 0, 1000, 10},
		{"uneven", 0, 1000, 7},
		{"negative-start", -500, 500, 9},
		{"large-steps", 0, 100000, 100},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			start, end := NewToken(test.start), NewToken(test.end)
			subs := collect(t, start, end, test.steps)

			require.NotEmpty(t, subs)
			assert.True(t, start.Equal(subs[0].Start))
			assert.True(t, end.Equal(subs[len(subs)-1].End))
			for i := 1; i < len(subs); i++ {
				// no gap, no overlap
				assert.True(t, subs[i-1].End.Equal(subs[i].Start))
			}
			assert.LessOrEqual(t, len(subs), test.steps+1)
		})
	}
}

func TestPartitionFullMurmur3Range(t *testing.T) {
	start, err := ParseToken("-9223372036854775808")
	require.NoError(t, err)
	end, err := ParseToken("9223372036854775807")
	require.NoError(t, err)

	subs := collect(t, start, end, 100)
	require.Len(t, subs, 101, "2^64-1 is not divisible by 100, so the tail remains")
	assert.True(t, start.Equal(subs[0].Start))
	assert.True(t, end.Equal(subs[len(subs)-1].End))
	for i := 1; i < len(subs); i++ {
		assert.True(t, subs[i-1].End.Equal(subs[i].Start))
	}
}

func TestPartitionSequenceIsSingleUse(t *testing.T) {
	seq, err := Partition(NewToken(0), NewToken(10), 100)
	require.NoError(t, err)

	_, ok := seq.Next()
	assert.True(t, ok)
	_, ok = seq.Next()
	assert.False(t, ok)
	_, ok = seq.Next()
	assert.False(t, ok)
}
