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

package scan

import (
	"context"
	"net"
	"net/netip"
	"sync"
)

// Resolver resolves target strings to IP address lists and memoizes every
// outcome, including failures, for the lifetime of one run. A failed
// resolution is an empty list, never an error: the caller decides whether
// that is worth retrying.
type Resolver struct {
	mu     sync.Mutex
	cache  map[string][]string
	lookup func(ctx context.Context, host string) ([]net.IPAddr, error)
}

// NewResolver creates a Resolver backed by the system resolver.
func NewResolver() *Resolver {
	return &Resolver{
		cache: make(map[string][]string),
		lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
			return net.DefaultResolver.LookupIPAddr(ctx, host)
		},
	}
}

// Resolve returns the resolved addresses for target, serving repeated
// lookups of the same string from cache with no I/O.
func (r *Resolver) Resolve(ctx context.Context, target string) []string {
	r.mu.Lock()
	ips, ok := r.cache[target]
	r.mu.Unlock()

	if ok {
		return ips
	}

	return r.ResolveFresh(ctx, target)
}

// ResolveFresh performs the lookup unconditionally and rewrites the cache
// entry. The orchestrator uses it for its one-shot delayed retry after a
// failed resolution; the Resolver itself never retries.
func (r *Resolver) ResolveFresh(ctx context.Context, target string) []string {
	ips := r.resolve(ctx, target)

	r.mu.Lock()
	r.cache[target] = ips
	r.mu.Unlock()

	return ips
}

func (r *Resolver) resolve(ctx context.Context, target string) []string {
	// Literal addresses resolve to themselves.
	if _, err := netip.ParseAddr(target); err == nil {
		return []string{target}
	}

	addrs, err := r.lookup(ctx, target)
	if err != nil {
		return nil
	}

	return partitionFamilies(addrs)
}

// partitionFamilies orders resolved addresses IPv4 first, then IPv6, keeping
// discovery order within each family and dropping duplicates.
func partitionFamilies(addrs []net.IPAddr) []string {
	var v4, v6 []string

	for _, a := range addrs {
		if a.IP.To4() != nil {
			v4 = append(v4, a.IP.String())
		} else {
			v6 = append(v6, a.IP.String())
		}
	}

	seen := make(map[string]struct{}, len(v4)+len(v6))

	var out []string

	for _, ip := range append(v4, v6...) {
		if _, ok := seen[ip]; ok {
			continue
		}

		seen[ip] = struct{}{}
		out = append(out, ip)
	}

	return out
}
