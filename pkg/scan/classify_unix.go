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

//go:build !windows

package scan

import (
	"errors"
	"syscall"
)

// retryableConnectErrnos are local-resource failures that clear on their own
// once momentary pressure subsides, so the probe is re-run at the slow
// timeout instead of being classified. Policy, not fixed semantics: notably,
// ENETUNREACH/EHOSTUNREACH are absent and therefore classify as filtered.
var retryableConnectErrnos = map[syscall.Errno]struct{}{
	syscall.EADDRNOTAVAIL: {}, // ephemeral port exhaustion
	syscall.EADDRINUSE:    {},
	syscall.ENOBUFS:       {}, // kernel socket buffers exhausted
	syscall.EMFILE:        {}, // per-process fd limit
	syscall.ENFILE:        {}, // system file table full
	syscall.ETIMEDOUT:     {}, // kernel-level connect timeout
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func isRetryableConnectError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	_, ok := retryableConnectErrnos[errno]

	return ok
}
