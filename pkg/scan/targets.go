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
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ExpandCIDR expands a CIDR notation into a slice of IP addresses.
// Skips network and broadcast addresses for IPv4 networks wider than /31.
func ExpandCIDR(cidr string) ([]string, error) {
	baseIP, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	var ips []string

	for currentIP := baseIP.Mask(ipnet.Mask); ipnet.Contains(currentIP); incIP(currentIP) {
		ones, _ := ipnet.Mask.Size()
		if currentIP.To4() != nil && ones < 31 {
			if currentIP.Equal(ipnet.IP) || isBroadcast(currentIP, ipnet) {
				continue
			}
		}

		ips = append(ips, currentIP.String())
	}

	return ips, nil
}

// incIP increments an IP address in place.
func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}

// isBroadcast checks if an IP is the broadcast address of a network.
func isBroadcast(ip net.IP, ipnet *net.IPNet) bool {
	broadcast := make(net.IP, len(ip))
	for i := range ip {
		broadcast[i] = ipnet.IP[i] | ^ipnet.Mask[i]
	}

	return ip.Equal(broadcast)
}

// ParseTargetArg expands one target expression: a comma list whose tokens
// are hostnames, literal addresses, CIDR blocks, or IPv4 last-octet ranges
// ("10.0.0.5-20"). Tokens that fail to expand pass through verbatim so a
// hostname containing a dash is never mangled. The result is deduplicated
// with first-occurrence order preserved.
func ParseTargetArg(arg string) []string {
	var out []string

	for _, raw := range strings.Split(arg, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}

		if strings.Contains(tok, "/") {
			if ips, err := ExpandCIDR(tok); err == nil {
				out = append(out, ips...)
			} else {
				out = append(out, tok)
			}

			continue
		}

		out = append(out, expandLastOctetRange(tok)...)
	}

	return dedupStrings(out)
}

// expandLastOctetRange turns "a.b.c.x-y" into the individual addresses.
// Anything that is not exactly that shape is returned unchanged.
func expandLastOctetRange(token string) []string {
	if strings.Count(token, ".") != 3 || !strings.Contains(token, "-") {
		return []string{token}
	}

	lastDot := strings.LastIndex(token, ".")
	prefix, tail := token[:lastDot], token[lastDot+1:]

	loStr, hiStr, ok := strings.Cut(tail, "-")
	if !ok {
		return []string{token}
	}

	lo, errLo := strconv.Atoi(loStr)
	hi, errHi := strconv.Atoi(hiStr)

	if errLo != nil || errHi != nil || lo < 0 || lo > 255 || hi < 0 || hi > 255 {
		return []string{token}
	}

	if net.ParseIP(prefix+".0") == nil {
		return []string{token}
	}

	if lo > hi {
		lo, hi = hi, lo
	}

	ips := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		ips = append(ips, fmt.Sprintf("%s.%d", prefix, i))
	}

	return ips
}

// LoadTargetsFile reads target expressions from a file, one per line.
// Blank lines and '#' comments are skipped; each line goes through
// ParseTargetArg and the combined result is deduplicated.
func LoadTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		out = append(out, ParseTargetArg(line)...)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return dedupStrings(out), nil
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))

	out := make([]string, 0, len(in))

	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
