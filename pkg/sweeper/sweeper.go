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

// Package sweeper drives a full connect-scan run: resolve every target,
// sweep the target/port cross product at the fast timeout, then retry the
// ambiguous timeouts once at the slow timeout.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/porter/pkg/logger"
	"github.com/carverauto/porter/pkg/models"
	"github.com/carverauto/porter/pkg/scan"
)

var ErrAlreadyRun = errors.New("sweeper instance has already run")

// resolver is satisfied by *scan.Resolver; tests substitute fakes.
type resolver interface {
	Resolve(ctx context.Context, target string) []string
	ResolveFresh(ctx context.Context, target string) []string
}

type probeFunc func(ctx context.Context, ip string, port int, timeout time.Duration) models.PortState

// Sweeper performs exactly one scan run. Callbacks must be assigned before
// Run; they are invoked from worker goroutines, in discovery order for
// opens, and must not block for long.
type Sweeper struct {
	// OnOpen streams each (target, port) confirmed open, deduplicated.
	OnOpen func(host string, port int)
	// OnResolve reports each target's resolution outcome; ips is empty when
	// resolution failed.
	OnResolve func(host string, ips []string)
	// OnRetryPass fires once if a retry pass is about to start.
	OnRetryPass func(pending int, timeout time.Duration)

	config  models.Config
	targets []string
	ports   []int
	logger  logger.Logger

	resolver resolver
	probe    probeFunc

	state       *runState
	ipsByTarget [][]string
	dnsFailed   map[int]struct{}
	portRankMap map[int]int

	label   atomic.Value
	started atomic.Bool
}

// New builds a Sweeper for one run. The port set is deduplicated and put in
// priority order here; both passes reuse that ordering. Config defaults and
// the [1,1024] concurrency clamp are applied via Normalize.
func New(config models.Config, targets []string, ports []int, log logger.Logger) *Sweeper {
	config.Normalize()

	ordered := scan.OrderPorts(dedupPorts(ports))

	rank := make(map[int]int, len(ordered))
	for i, p := range ordered {
		rank[p] = i
	}

	s := &Sweeper{
		config:      config,
		targets:     targets,
		ports:       ordered,
		logger:      log,
		resolver:    scan.NewResolver(),
		probe:       scan.Probe,
		state:       newRunState(len(targets)),
		ipsByTarget: make([][]string, len(targets)),
		dnsFailed:   make(map[int]struct{}),
		portRankMap: rank,
	}

	s.label.Store(labelScan)

	return s
}

// Progress returns a race-free snapshot of the current pass. Counters are
// monotonic within the run; Total is fixed before each pass starts, so the
// percentage a renderer derives from it never goes backwards.
func (s *Sweeper) Progress() Progress {
	return Progress{
		Label: s.label.Load().(string),
		Done:  s.state.probesDone.Load(),
		Total: s.state.probesTotal.Load(),
		Opens: s.state.openCount.Load(),
	}
}

// Run executes the full lifecycle and returns the frozen summary. A
// canceled context stops work promptly and yields a partial summary rather
// than an error; only configuration problems return one.
func (s *Sweeper) Run(ctx context.Context) (*models.Summary, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	if len(s.ports) == 0 {
		return nil, scan.ErrEmptyPortSpec
	}

	if len(s.targets) == 0 {
		return nil, scan.ErrNoTargets
	}

	s.logger.Info().
		Int("targets", len(s.targets)).
		Int("ports", len(s.ports)).
		Int("concurrency", s.config.Concurrency).
		Dur("fastTimeout", s.config.FastTimeout).
		Dur("slowTimeout", s.config.SlowTimeout).
		Bool("retry", s.config.Retry).
		Msg("Starting scan run")

	start := time.Now()

	s.resolveAll(ctx)

	ipCount := 0
	for i := range s.targets {
		ipCount += len(s.ipsByTarget[i])
	}

	if ipCount == 0 {
		s.logger.Warn().Msg("No resolvable targets, nothing to scan")
		return s.summarize(start, ctx), nil
	}

	s.state.probesTotal.Add(int64(ipCount) * int64(len(s.ports)))
	s.runPass(ctx, labelScan, s.config.FastTimeout, s.produceFast, s.config.Retry)

	if s.config.Retry && ctx.Err() == nil {
		retries := s.state.takeRetries(s.portRank)
		if len(retries) > 0 {
			if s.OnRetryPass != nil {
				s.OnRetryPass(len(retries), s.config.SlowTimeout)
			}

			s.logger.Debug().Int("pending", len(retries)).Msg("Starting retry pass")

			s.state.probesTotal.Add(int64(len(retries)))
			s.runPass(ctx, labelRetry, s.config.SlowTimeout, s.produceRetries(retries), false)
		}
	}

	sum := s.summarize(start, ctx)

	s.logger.Info().
		Int64("probes", sum.ProbesDone).
		Int64("opens", sum.OpenCount).
		Int64("timeouts", sum.TimeoutCount).
		Int("dnsFailed", sum.DNSFailedCount).
		Dur("elapsed", sum.Elapsed).
		Bool("partial", sum.Partial).
		Msg("Scan run complete")

	return sum, nil
}

// resolveAll resolves targets sequentially in caller order. A target whose
// first lookup comes back empty gets exactly one delayed re-resolve before
// being marked DNS-failed; the Resolver caches the empty outcome, so the
// retry goes through ResolveFresh.
func (s *Sweeper) resolveAll(ctx context.Context) {
	for i, target := range s.targets {
		if ctx.Err() != nil {
			return
		}

		ips := s.resolver.Resolve(ctx, target)

		if len(ips) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(resolveRetryDelay):
			}

			ips = s.resolver.ResolveFresh(ctx, target)
		}

		if len(ips) == 0 {
			s.dnsFailed[i] = struct{}{}
			s.logger.Warn().Str("target", target).Msg("DNS resolution failed, skipping target")
		} else {
			s.ipsByTarget[i] = ips
		}

		if s.OnResolve != nil {
			s.OnResolve(target, ips)
		}
	}
}

// runPass runs one pass: a fixed-size worker pool draining a bounded task
// channel while the producer fills it. Closing the channel is the shutdown
// signal; the WaitGroup over the known worker count replaces sentinels.
func (s *Sweeper) runPass(ctx context.Context, label string, timeout time.Duration,
	produce func(context.Context, chan<- probeTask), recordRetries bool) {
	s.label.Store(label)

	tasks := make(chan probeTask, s.config.Concurrency*queueDepthMultiplier)

	var wg sync.WaitGroup

	for i := 0; i < s.config.Concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s.worker(ctx, tasks, timeout, recordRetries)
		}()
	}

	go func() {
		defer close(tasks)

		produce(ctx, tasks)
	}()

	wg.Wait()
}

func (s *Sweeper) worker(ctx context.Context, tasks <-chan probeTask, timeout time.Duration, recordRetries bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}

			state := s.probe(ctx, task.ip, task.port, timeout)

			if ctx.Err() != nil {
				return
			}

			s.state.probesDone.Add(1)

			switch state {
			case models.StateOpen:
				if s.state.recordOpen(task.targetIndex, task.port) && s.OnOpen != nil {
					s.OnOpen(task.host, task.port)
				}
			case models.StateTimeout:
				s.state.timeoutCount.Add(1)

				if recordRetries {
					s.state.addRetry(retryKey{targetIndex: task.targetIndex, ip: task.ip, port: task.port})
				}
			case models.StateClosed, models.StateFiltered:
				// Terminal outcomes; counted only in probesDone.
			}
		}
	}
}

// produceFast emits the fast-pass universe port-major: all hosts for one
// port before the next port, so opens on popular ports across the whole
// host set surface first.
func (s *Sweeper) produceFast(ctx context.Context, tasks chan<- probeTask) {
	for _, port := range s.ports {
		for ti, host := range s.targets {
			if _, failed := s.dnsFailed[ti]; failed {
				continue
			}

			for _, ip := range s.ipsByTarget[ti] {
				select {
				case <-ctx.Done():
					return
				case tasks <- probeTask{targetIndex: ti, host: host, ip: ip, port: port}:
				}
			}
		}
	}
}

// produceRetries emits exactly the recorded fast-pass timeouts.
func (s *Sweeper) produceRetries(retries []retryKey) func(context.Context, chan<- probeTask) {
	return func(ctx context.Context, tasks chan<- probeTask) {
		for _, key := range retries {
			select {
			case <-ctx.Done():
				return
			case tasks <- probeTask{
				targetIndex: key.targetIndex,
				host:        s.targets[key.targetIndex],
				ip:          key.ip,
				port:        key.port,
			}:
			}
		}
	}
}

func (s *Sweeper) portRank(port int) int {
	if r, ok := s.portRankMap[port]; ok {
		return r
	}

	return len(s.portRankMap)
}

func (s *Sweeper) summarize(start time.Time, ctx context.Context) *models.Summary {
	reports := make([]models.TargetReport, len(s.targets))

	for i, target := range s.targets {
		_, failed := s.dnsFailed[i]

		reports[i] = models.TargetReport{
			Host:        target,
			ResolvedIPs: s.ipsByTarget[i],
			DNSFailed:   failed,
			OpenPorts:   s.state.openPorts(i),
		}
	}

	return &models.Summary{
		Reports:        reports,
		ProbesTotal:    s.state.probesTotal.Load(),
		ProbesDone:     s.state.probesDone.Load(),
		OpenCount:      s.state.openCount.Load(),
		TimeoutCount:   s.state.timeoutCount.Load(),
		DNSFailedCount: len(s.dnsFailed),
		Elapsed:        time.Since(start),
		Partial:        ctx.Err() != nil,
	}
}

func dedupPorts(ports []int) []int {
	seen := make(map[int]struct{}, len(ports))

	out := make([]int, 0, len(ports))

	for _, p := range ports {
		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}
		out = append(out, p)
	}

	return out
}
