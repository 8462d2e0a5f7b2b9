/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sweeper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordOpenDeduplicates(t *testing.T) {
	s := newRunState(2)

	assert.True(t, s.recordOpen(0, 80))
	assert.False(t, s.recordOpen(0, 80), "second report of the same pair is a duplicate")
	assert.True(t, s.recordOpen(0, 443))
	assert.True(t, s.recordOpen(1, 80), "same port on another target is distinct")

	assert.Equal(t, int64(3), s.openCount.Load())
}

func TestRecordOpenConcurrent(t *testing.T) {
	s := newRunState(1)

	const goroutines = 50

	firsts := make(chan bool, goroutines)

	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			firsts <- s.recordOpen(0, 22)
		}()
	}

	wg.Wait()
	close(firsts)

	trueCount := 0
	for first := range firsts {
		if first {
			trueCount++
		}
	}

	assert.Equal(t, 1, trueCount, "exactly one goroutine may observe the first open")
	assert.Equal(t, int64(1), s.openCount.Load())
}

func TestTakeRetriesOrdering(t *testing.T) {
	s := newRunState(3)

	// Rank: 443 before 80 before everything else.
	rank := func(port int) int {
		switch port {
		case 443:
			return 0
		case 80:
			return 1
		default:
			return 2
		}
	}

	s.addRetry(retryKey{targetIndex: 2, ip: "10.0.0.3", port: 80})
	s.addRetry(retryKey{targetIndex: 0, ip: "10.0.0.1", port: 8080})
	s.addRetry(retryKey{targetIndex: 1, ip: "10.0.0.2", port: 443})
	s.addRetry(retryKey{targetIndex: 0, ip: "10.0.0.1", port: 443})
	s.addRetry(retryKey{targetIndex: 0, ip: "10.0.0.9", port: 443})
	s.addRetry(retryKey{targetIndex: 0, ip: "10.0.0.1", port: 80})

	got := s.takeRetries(rank)

	want := []retryKey{
		{targetIndex: 0, ip: "10.0.0.1", port: 443},
		{targetIndex: 0, ip: "10.0.0.9", port: 443},
		{targetIndex: 1, ip: "10.0.0.2", port: 443},
		{targetIndex: 0, ip: "10.0.0.1", port: 80},
		{targetIndex: 2, ip: "10.0.0.3", port: 80},
		{targetIndex: 0, ip: "10.0.0.1", port: 8080},
	}
	assert.Equal(t, want, got)

	assert.Empty(t, s.takeRetries(rank), "drain must clear the set")
}

func TestTakeRetriesCollapsesDuplicates(t *testing.T) {
	s := newRunState(1)

	key := retryKey{targetIndex: 0, ip: "10.0.0.1", port: 80}
	s.addRetry(key)
	s.addRetry(key)

	got := s.takeRetries(func(int) int { return 0 })
	assert.Equal(t, []retryKey{key}, got)
}

func TestOpenPortsSorted(t *testing.T) {
	s := newRunState(1)

	s.recordOpen(0, 8080)
	s.recordOpen(0, 22)
	s.recordOpen(0, 443)

	assert.Equal(t, []int{22, 443, 8080}, s.openPorts(0))
}
