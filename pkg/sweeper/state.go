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
	"sort"
	"sync"
	"sync/atomic"
)

// runState is the only data mutated by multiple workers concurrently: the
// per-target open sets, the pending-retry set, and the run counters. All
// counters are monotonic within a run.
type runState struct {
	mu            sync.Mutex
	opensByTarget []map[int]struct{}
	retrySet      map[retryKey]struct{}

	probesTotal  atomic.Int64
	probesDone   atomic.Int64
	openCount    atomic.Int64
	timeoutCount atomic.Int64
}

func newRunState(targetCount int) *runState {
	opens := make([]map[int]struct{}, targetCount)
	for i := range opens {
		opens[i] = make(map[int]struct{})
	}

	return &runState{
		opensByTarget: opens,
		retrySet:      make(map[retryKey]struct{}),
	}
}

// recordOpen marks (target, port) open and reports whether this is the first
// observation. Duplicate reports — second IP of the same host, or the retry
// pass — return false and leave the counters untouched.
func (s *runState) recordOpen(targetIndex, port int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.opensByTarget[targetIndex][port]; ok {
		return false
	}

	s.opensByTarget[targetIndex][port] = struct{}{}
	s.openCount.Add(1)

	return true
}

func (s *runState) addRetry(key retryKey) {
	s.mu.Lock()
	s.retrySet[key] = struct{}{}
	s.mu.Unlock()
}

// takeRetries drains the pending-retry set, returning the triples in
// deterministic order: priority-ordered port, then target, then IP.
func (s *runState) takeRetries(portRank func(int) int) []retryKey {
	s.mu.Lock()

	keys := make([]retryKey, 0, len(s.retrySet))
	for k := range s.retrySet {
		keys = append(keys, k)
	}

	s.retrySet = make(map[retryKey]struct{})
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if ri, rj := portRank(keys[i].port), portRank(keys[j].port); ri != rj {
			return ri < rj
		}

		if keys[i].targetIndex != keys[j].targetIndex {
			return keys[i].targetIndex < keys[j].targetIndex
		}

		return keys[i].ip < keys[j].ip
	})

	return keys
}

// openPorts returns the sorted open-port list for one target.
func (s *runState) openPorts(targetIndex int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ports := make([]int, 0, len(s.opensByTarget[targetIndex]))
	for p := range s.opensByTarget[targetIndex] {
		ports = append(ports, p)
	}

	sort.Ints(ports)

	return ports
}
