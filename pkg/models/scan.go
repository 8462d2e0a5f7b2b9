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

// Package models provides data models for the porter scan engine.
package models

import "time"

// PortState classifies the outcome of a single connect probe.
type PortState string

const (
	// StateOpen means the TCP handshake completed.
	StateOpen PortState = "open"
	// StateClosed means the connection was actively refused.
	StateClosed PortState = "closed"
	// StateFiltered means the probe failed with a terminal error that is
	// neither a refusal nor worth retrying.
	StateFiltered PortState = "filtered"
	// StateTimeout means the deadline elapsed, or the probe hit a transient
	// local-resource error and should be retried at the slow timeout.
	StateTimeout PortState = "timeout"
)

const (
	DefaultConcurrency = 300
	MinConcurrency     = 1
	MaxConcurrency     = 1024

	DefaultFastTimeout = 300 * time.Millisecond
	DefaultSlowTimeout = 1 * time.Second
)

// Config defines one scan run.
type Config struct {
	Concurrency int           `json:"concurrency"`
	FastTimeout time.Duration `json:"fast_timeout"`
	SlowTimeout time.Duration `json:"slow_timeout"`
	Retry       bool          `json:"retry"`
	Quiet       bool          `json:"quiet"`
}

// DefaultConfig returns a Config with the stock defaults applied.
func DefaultConfig() Config {
	return Config{
		Concurrency: DefaultConcurrency,
		FastTimeout: DefaultFastTimeout,
		SlowTimeout: DefaultSlowTimeout,
		Retry:       true,
	}
}

// Normalize fills zero values with defaults and clamps the concurrency
// ceiling to [MinConcurrency, MaxConcurrency].
func (c *Config) Normalize() {
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.Concurrency < MinConcurrency {
		c.Concurrency = MinConcurrency
	}

	if c.Concurrency > MaxConcurrency {
		c.Concurrency = MaxConcurrency
	}

	if c.FastTimeout <= 0 {
		c.FastTimeout = DefaultFastTimeout
	}

	if c.SlowTimeout <= 0 {
		c.SlowTimeout = DefaultSlowTimeout
	}
}

// TargetReport is the per-target result handed to the rendering layer.
type TargetReport struct {
	Host        string   `json:"host"`
	ResolvedIPs []string `json:"resolved_ips,omitempty"`
	DNSFailed   bool     `json:"dns_failed,omitempty"`
	OpenPorts   []int    `json:"open_ports,omitempty"`
}

// Summary aggregates a completed (or aborted) run.
type Summary struct {
	Reports        []TargetReport `json:"reports"`
	ProbesTotal    int64          `json:"probes_total"`
	ProbesDone     int64          `json:"probes_done"`
	OpenCount      int64          `json:"open_count"`
	TimeoutCount   int64          `json:"timeout_count"`
	DNSFailedCount int            `json:"dns_failed_count"`
	Elapsed        time.Duration  `json:"elapsed"`
	Partial        bool           `json:"partial,omitempty"`
}

// NothingToScan reports whether every target failed resolution, i.e. the run
// ended before any probe was issued.
func (s *Summary) NothingToScan() bool {
	return s.ProbesTotal == 0 && s.DNSFailedCount == len(s.Reports)
}
