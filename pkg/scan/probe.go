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
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/porter/pkg/models"
)

const (
	// Knuth multiplicative hash constant, folded with the port number so two
	// ports on the same host do not share a jitter slot.
	jitterPortMix = 2654435761

	// Jitter delays land in [0, 2000] microseconds.
	jitterModMicros = 2001
)

// Jitter returns the deterministic pre-connect delay for (ip, port).
// Spreading connects by up to 2ms keeps a large pass from emitting a
// synchronized burst against one host, which reads as a flood to local and
// remote rate limiters. Deterministic so a rerun probes on the same schedule.
func Jitter(ip string, port int) time.Duration {
	var h uint32

	for i := 0; i < len(ip); i++ {
		h = h*31 + uint32(ip[i])
	}

	h ^= uint32(port) * jitterPortMix

	return time.Duration(h%jitterModMicros) * time.Microsecond
}

// Probe performs one jittered TCP connect attempt against ip:port under the
// given deadline and classifies the outcome. Network-level failures are
// results, not errors; the probe never returns one.
func Probe(ctx context.Context, ip string, port int, timeout time.Duration) models.PortState {
	select {
	case <-ctx.Done():
		return models.StateTimeout
	case <-time.After(Jitter(ip, port)):
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer

	conn, err := dialer.DialContext(probeCtx, dialNetwork(ip), net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return classifyConnectError(probeCtx, err)
	}

	// Handshake completed; the connection itself is not interesting.
	_ = conn.Close()

	return models.StateOpen
}

// dialNetwork pins the dial family to the literal's family so the dialer
// cannot fall back across families mid-probe.
func dialNetwork(ip string) string {
	if strings.Contains(ip, ":") {
		return "tcp6"
	}

	return "tcp4"
}

// classifyConnectError maps a failed connect to a PortState. The retryable
// table is deliberately conservative: a transient local error misread as
// "closed" or "filtered" is a permanent accuracy bug, while misreading it
// as "timeout" only costs one slow-pass probe.
func classifyConnectError(probeCtx context.Context, err error) models.PortState {
	if probeCtx.Err() != nil {
		return models.StateTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.StateTimeout
	}

	if isConnRefused(err) {
		return models.StateClosed
	}

	if isRetryableConnectError(err) {
		return models.StateTimeout
	}

	return models.StateFiltered
}
