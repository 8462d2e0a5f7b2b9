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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name string
		cidr string
		want []string
	}{
		{
			name: "slash 30 drops network and broadcast",
			cidr: "192.168.1.0/30",
			want: []string{"192.168.1.1", "192.168.1.2"},
		},
		{
			name: "slash 31 keeps both addresses",
			cidr: "10.0.0.0/31",
			want: []string{"10.0.0.0", "10.0.0.1"},
		},
		{
			name: "slash 32 is the single host",
			cidr: "10.1.2.3/32",
			want: []string{"10.1.2.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandCIDR(tt.cidr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandCIDRSize(t *testing.T) {
	got, err := ExpandCIDR("172.16.0.0/24")
	require.NoError(t, err)
	assert.Len(t, got, 254)
	assert.Equal(t, "172.16.0.1", got[0])
	assert.Equal(t, "172.16.0.254", got[len(got)-1])
}

func TestExpandCIDRInvalid(t *testing.T) {
	_, err := ExpandCIDR("not-a-cidr/24")
	assert.Error(t, err)
}

func TestParseTargetArg(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want []string
	}{
		{
			name: "hostname passes through",
			arg:  "example.com",
			want: []string{"example.com"},
		},
		{
			name: "hyphenated hostname is not a range",
			arg:  "my-host.example.com",
			want: []string{"my-host.example.com"},
		},
		{
			name: "last octet range",
			arg:  "10.0.0.1-3",
			want: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		},
		{
			name: "reversed range swapped",
			arg:  "10.0.0.3-1",
			want: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		},
		{
			name: "comma list deduplicated in order",
			arg:  "a.example.com,b.example.com,a.example.com",
			want: []string{"a.example.com", "b.example.com"},
		},
		{
			name: "cidr token expands inline",
			arg:  "192.168.1.0/30,example.com",
			want: []string{"192.168.1.1", "192.168.1.2", "example.com"},
		},
		{
			name: "bad cidr passes through verbatim",
			arg:  "foo/bar",
			want: []string{"foo/bar"},
		},
		{
			name: "out of bounds octet passes through",
			arg:  "10.0.0.250-300",
			want: []string{"10.0.0.250-300"},
		},
		{
			name: "blank tokens skipped",
			arg:  " ,example.com, ",
			want: []string{"example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTargetArg(tt.arg))
		})
	}
}

func TestLoadTargetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")

	content := "# lab hosts\nexample.com\n\n10.0.0.1-2\nexample.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := LoadTargetsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "10.0.0.1", "10.0.0.2"}, got)
}

func TestLoadTargetsFileMissing(t *testing.T) {
	_, err := LoadTargetsFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestServiceNames(t *testing.T) {
	var svc ServiceNames

	assert.Equal(t, "https", svc.Name(443))
	assert.Equal(t, "ssh", svc.Name(22))
	assert.Empty(t, svc.Name(49152))

	assert.Equal(t, "443/https", svc.Label(443))
	assert.Equal(t, "49152", svc.Label(49152))
}
