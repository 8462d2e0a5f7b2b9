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

//go:build windows

package scan

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// Winsock mirror of the unix retryable table. Same policy: only transient
// local-resource failures retry; unreachable-style errors stay filtered.
var retryableConnectErrnos = map[syscall.Errno]struct{}{
	windows.WSAEADDRINUSE:    {}, // 10048
	windows.WSAEADDRNOTAVAIL: {}, // 10049
	windows.WSAENOBUFS:       {}, // 10055
	windows.WSAETIMEDOUT:     {}, // 10060
	windows.WSAEMFILE:        {}, // 10024
}

func isConnRefused(err error) bool {
	return errors.Is(err, windows.WSAECONNREFUSED)
}

func isRetryableConnectError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	_, ok := retryableConnectErrnos[errno]

	return ok
}
