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

import "strconv"

// wellKnownServices is a static display-name table for common TCP ports.
// Go has no portable getservbyport, so the table is compiled in; output is
// identical across platforms, which the OS services file would not be.
var wellKnownServices = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "smtps",
	514:   "syslog",
	587:   "submission",
	636:   "ldaps",
	853:   "domain-s",
	993:   "imaps",
	995:   "pop3s",
	1433:  "ms-sql-s",
	1521:  "oracle-tns",
	2049:  "nfs",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	4369:  "epmd",
	5000:  "upnp",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "vnc",
	5901:  "vnc-1",
	6379:  "redis",
	8000:  "http-alt",
	8080:  "http-proxy",
	8081:  "blackice-icecap",
	8443:  "https-alt",
	8530:  "wsus",
	8888:  "sun-answerbook",
	9200:  "wap-wsp",
	11211: "memcache",
	15672: "rabbitmq-mgmt",
	25565: "minecraft",
	27017: "mongod",
	27018: "mongod-shard",
	27019: "mongod-config",
}

// ServiceNames provides display-name lookups for one run. It exists so the
// lookup surface is owned by the run rather than being process-global state.
type ServiceNames struct{}

// Name returns the well-known service name for a TCP port, or "".
func (ServiceNames) Name(port int) string {
	return wellKnownServices[port]
}

// Label returns "port/name" when the port has a well-known name, otherwise
// just the port number.
func (s ServiceNames) Label(port int) string {
	if name := s.Name(port); name != "" {
		return strconv.Itoa(port) + "/" + name
	}

	return strconv.Itoa(port)
}
