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
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/porter/pkg/logger"
	"github.com/carverauto/porter/pkg/models"
	"github.com/carverauto/porter/pkg/scan"
)

// stubResolver maps each target to a fixed IP list and counts lookups.
type stubResolver struct {
	mu         sync.Mutex
	ips        map[string][]string
	freshCalls int
}

func (r *stubResolver) Resolve(_ context.Context, target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ips[target]
}

func (r *stubResolver) ResolveFresh(_ context.Context, target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.freshCalls++

	return r.ips[target]
}

func testConfig() models.Config {
	return models.Config{
		Concurrency: 16,
		FastTimeout: 500 * time.Millisecond,
		SlowTimeout: time.Second,
		Retry:       true,
	}
}

// listenLocal returns a listening port and a port that was just released, so
// connecting to the latter is refused on loopback.
func listenLocal(t *testing.T) (openPort, closedPort int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	closer, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	closedPort = closer.Addr().(*net.TCPAddr).Port
	require.NoError(t, closer.Close())

	return ln.Addr().(*net.TCPAddr).Port, closedPort
}

func TestSweeperOpenAndClosed(t *testing.T) {
	openPort, closedPort := listenLocal(t)

	sw := New(testConfig(), []string{"127.0.0.1"}, []int{openPort, closedPort}, logger.NewTestLogger())

	var (
		mu    sync.Mutex
		opens []int
	)

	sw.OnOpen = func(_ string, port int) {
		mu.Lock()
		opens = append(opens, port)
		mu.Unlock()
	}

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{openPort}, opens)
	assert.Equal(t, []int{openPort}, sum.Reports[0].OpenPorts)
	assert.Equal(t, int64(1), sum.OpenCount)
	assert.Equal(t, int64(0), sum.TimeoutCount, "closed must not enter the retry set")
	assert.Equal(t, int64(2), sum.ProbesTotal)
	assert.Equal(t, int64(2), sum.ProbesDone)
	assert.False(t, sum.Partial)
}

func TestSweeperPortMajorOrder(t *testing.T) {
	config := testConfig()
	config.Concurrency = 1

	sw := New(config, []string{"10.0.0.1", "10.0.0.2"}, []int{22, 80}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{
		"10.0.0.1": {"10.0.0.1"},
		"10.0.0.2": {"10.0.0.2"},
	}}

	var (
		mu  sync.Mutex
		seq []probeTask
	)

	sw.probe = func(_ context.Context, ip string, port int, _ time.Duration) models.PortState {
		mu.Lock()
		seq = append(seq, probeTask{ip: ip, port: port})
		mu.Unlock()

		return models.StateClosed
	}

	_, err := sw.Run(context.Background())
	require.NoError(t, err)

	// 80 outranks 22 in the priority order; within one port the wavefront
	// covers every host before moving on.
	want := []probeTask{
		{ip: "10.0.0.1", port: 80},
		{ip: "10.0.0.2", port: 80},
		{ip: "10.0.0.1", port: 22},
		{ip: "10.0.0.2", port: 22},
	}
	assert.Equal(t, want, seq)
}

func TestSweeperRetryRecovers(t *testing.T) {
	sw := New(testConfig(), []string{"10.0.0.1"}, []int{80}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{"10.0.0.1": {"10.0.0.1"}}}

	var (
		mu       sync.Mutex
		attempts int
	)

	sw.probe = func(_ context.Context, _ string, _ int, _ time.Duration) models.PortState {
		mu.Lock()
		defer mu.Unlock()

		attempts++
		if attempts == 1 {
			return models.StateTimeout
		}

		return models.StateOpen
	}

	retryPasses := 0
	sw.OnRetryPass = func(pending int, timeout time.Duration) {
		retryPasses++
		assert.Equal(t, 1, pending)
		assert.Equal(t, time.Second, timeout)
	}

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, retryPasses)
	assert.Equal(t, []int{80}, sum.Reports[0].OpenPorts)
	assert.Equal(t, int64(2), sum.ProbesTotal, "retry probes extend the total")
	assert.Equal(t, int64(2), sum.ProbesDone)
}

func TestSweeperRetriesAtMostOnce(t *testing.T) {
	sw := New(testConfig(), []string{"10.0.0.1"}, []int{80, 443}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{"10.0.0.1": {"10.0.0.1"}}}

	attempts := make(map[int]int)

	var mu sync.Mutex

	sw.probe = func(_ context.Context, _ string, port int, _ time.Duration) models.PortState {
		mu.Lock()
		attempts[port]++
		mu.Unlock()

		return models.StateTimeout
	}

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, attempts[80], "a persistent timeout is probed exactly twice")
	assert.Equal(t, 2, attempts[443])
	assert.Equal(t, int64(4), sum.TimeoutCount)
	assert.Empty(t, sum.Reports[0].OpenPorts)
}

func TestSweeperRetryDisabled(t *testing.T) {
	config := testConfig()
	config.Retry = false

	sw := New(config, []string{"10.0.0.1"}, []int{80}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{"10.0.0.1": {"10.0.0.1"}}}

	attempts := 0

	var mu sync.Mutex

	sw.probe = func(_ context.Context, _ string, _ int, _ time.Duration) models.PortState {
		mu.Lock()
		attempts++
		mu.Unlock()

		return models.StateTimeout
	}

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, attempts)
	assert.Equal(t, int64(1), sum.TimeoutCount)
	assert.Equal(t, int64(1), sum.ProbesTotal)
}

func TestSweeperOpenDedupAcrossIPs(t *testing.T) {
	sw := New(testConfig(), []string{"multi.example"}, []int{443}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{
		"multi.example": {"192.0.2.1", "192.0.2.2"},
	}}
	sw.probe = func(_ context.Context, _ string, _ int, _ time.Duration) models.PortState {
		return models.StateOpen
	}

	openEvents := 0

	var mu sync.Mutex

	sw.OnOpen = func(host string, port int) {
		mu.Lock()
		openEvents++
		mu.Unlock()

		assert.Equal(t, "multi.example", host)
		assert.Equal(t, 443, port)
	}

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, openEvents, "one open per (target, port) even with two IPs")
	assert.Equal(t, int64(1), sum.OpenCount)
	assert.Equal(t, []int{443}, sum.Reports[0].OpenPorts)
	assert.Equal(t, int64(2), sum.ProbesTotal, "both IPs are still probed")
}

func TestSweeperDNSFailure(t *testing.T) {
	resolver := &stubResolver{ips: map[string][]string{
		"up.example": {"192.0.2.1"},
	}}

	sw := New(testConfig(), []string{"down.example", "up.example"}, []int{80}, logger.NewTestLogger())
	sw.resolver = resolver
	sw.probe = func(_ context.Context, _ string, _ int, _ time.Duration) models.PortState {
		return models.StateClosed
	}

	resolved := make(map[string]int)
	sw.OnResolve = func(host string, ips []string) {
		resolved[host] = len(ips)
	}

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, sum.Reports[0].DNSFailed)
	assert.False(t, sum.Reports[1].DNSFailed)
	assert.Equal(t, 1, sum.DNSFailedCount)
	assert.Equal(t, 1, resolver.freshCalls, "failed target gets exactly one re-resolve")
	assert.Equal(t, 0, resolved["down.example"])
	assert.Equal(t, 1, resolved["up.example"])
	assert.Equal(t, int64(1), sum.ProbesTotal, "failed target contributes no probes")
}

func TestSweeperNothingToScan(t *testing.T) {
	sw := New(testConfig(), []string{"down.example"}, []int{80}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{}}

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, sum.NothingToScan())
	assert.Zero(t, sum.ProbesTotal)
	assert.True(t, sum.Reports[0].DNSFailed)
}

func TestSweeperRunTwice(t *testing.T) {
	sw := New(testConfig(), []string{"10.0.0.1"}, []int{80}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{"10.0.0.1": {"10.0.0.1"}}}
	sw.probe = func(_ context.Context, _ string, _ int, _ time.Duration) models.PortState {
		return models.StateClosed
	}

	_, err := sw.Run(context.Background())
	require.NoError(t, err)

	_, err = sw.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestSweeperInputValidation(t *testing.T) {
	sw := New(testConfig(), []string{"10.0.0.1"}, nil, logger.NewTestLogger())
	_, err := sw.Run(context.Background())
	assert.ErrorIs(t, err, scan.ErrEmptyPortSpec)

	sw = New(testConfig(), nil, []int{80}, logger.NewTestLogger())
	_, err = sw.Run(context.Background())
	assert.ErrorIs(t, err, scan.ErrNoTargets)
}

func TestSweeperCancelYieldsPartial(t *testing.T) {
	sw := New(testConfig(), []string{"10.0.0.1"}, []int{80, 443, 8080}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{"10.0.0.1": {"10.0.0.1"}}}
	sw.probe = func(ctx context.Context, _ string, _ int, _ time.Duration) models.PortState {
		<-ctx.Done()
		return models.StateTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	sum, err := sw.Run(ctx)
	require.NoError(t, err, "cancellation is a partial result, not an error")

	assert.True(t, sum.Partial)
	assert.Equal(t, int64(3), sum.ProbesTotal)
	assert.Less(t, sum.ProbesDone, sum.ProbesTotal)
}

func TestSweeperProgressSnapshot(t *testing.T) {
	sw := New(testConfig(), []string{"10.0.0.1"}, []int{80, 443}, logger.NewTestLogger())
	sw.resolver = &stubResolver{ips: map[string][]string{"10.0.0.1": {"10.0.0.1"}}}
	sw.probe = func(_ context.Context, _ string, _ int, _ time.Duration) models.PortState {
		return models.StateClosed
	}

	before := sw.Progress()
	assert.Equal(t, labelScan, before.Label)
	assert.Zero(t, before.Total)

	_, err := sw.Run(context.Background())
	require.NoError(t, err)

	after := sw.Progress()
	assert.Equal(t, int64(2), after.Total)
	assert.Equal(t, after.Total, after.Done)
}
