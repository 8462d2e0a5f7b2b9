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

// Package render turns scan events and the final summary into terminal
// output. Opens stream to stdout as they are found; the progress bar and
// warnings go to stderr so quiet pipelines stay machine-readable.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/carverauto/porter/pkg/models"
	"github.com/carverauto/porter/pkg/scan"
)

const dividerWidth = 64

type styleSet struct {
	green  lipgloss.Style
	yellow lipgloss.Style
	red    lipgloss.Style
	dim    lipgloss.Style
	bold   lipgloss.Style
}

// Renderer renders one run. Safe for the sweeper's worker goroutines to
// call concurrently.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	quiet  bool
	color  bool
	isTTY  bool
	config models.Config
	svc    scan.ServiceNames
	styles styleSet

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func New(config models.Config) *Renderer {
	tty := isatty.IsTerminal(os.Stderr.Fd())

	return &Renderer{
		out:    os.Stdout,
		errOut: os.Stderr,
		quiet:  config.Quiet,
		color:  tty,
		isTTY:  tty,
		config: config,
		styles: styleSet{
			green:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			yellow: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			red:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
			dim:    lipgloss.NewStyle().Faint(true),
			bold:   lipgloss.NewStyle().Bold(true),
		},
	}
}

func (r *Renderer) green(s string) string  { return r.style(r.styles.green, s) }
func (r *Renderer) yellow(s string) string { return r.style(r.styles.yellow, s) }
func (r *Renderer) red(s string) string    { return r.style(r.styles.red, s) }
func (r *Renderer) dim(s string) string    { return r.style(r.styles.dim, s) }
func (r *Renderer) bold(s string) string   { return r.style(r.styles.bold, s) }

func (r *Renderer) style(st lipgloss.Style, s string) string {
	if !r.color {
		return s
	}

	return st.Render(s)
}

// Banner prints the run header.
func (r *Renderer) Banner(targets []string, portDesc string) {
	if r.quiet {
		return
	}

	preview := ""
	if len(targets) <= 5 {
		preview = fmt.Sprintf("  (%s)", strings.Join(targets, ", "))
	} else if len(targets) <= 20 {
		preview = fmt.Sprintf("  (%s, ...)", strings.Join(targets[:5], ", "))
	}

	retry := "on"
	if !r.config.Retry {
		retry = "off"
	}

	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("-", dividerWidth))
	fmt.Fprintf(r.out, "  Porter - TCP Connect Scanner\n")
	fmt.Fprintf(r.out, "  Targets    : %d %s%s\n", len(targets), plural(len(targets), "host", "hosts"), preview)
	fmt.Fprintf(r.out, "  Ports      : %s\n", portDesc)
	fmt.Fprintf(r.out, "  Concurrency: %d   Timeouts: %.2fs / %.2fs   Retry: %s\n",
		r.config.Concurrency, r.config.FastTimeout.Seconds(), r.config.SlowTimeout.Seconds(), retry)
	fmt.Fprintf(r.out, "%s\n\n", strings.Repeat("-", dividerWidth))
}

// HandleResolve reports one target's resolution outcome.
func (r *Renderer) HandleResolve(host string, ips []string) {
	if r.quiet {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearBarLocked()

	if len(ips) == 0 {
		fmt.Fprintf(r.out, "  %s %s - DNS resolution failed, skipping\n", r.red("!"), host)
		return
	}

	if host != ips[0] {
		fmt.Fprintln(r.out, r.dim(fmt.Sprintf("  > %s -> %s", host, strings.Join(ips, ", "))))
	}
}

// HandleOpen streams one confirmed-open pair as it is discovered.
func (r *Renderer) HandleOpen(host string, port int) {
	if r.quiet {
		return
	}

	svcPart := ""
	if name := r.svc.Name(port); name != "" {
		svcPart = "  " + r.dim(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearBarLocked()
	fmt.Fprintf(r.out, " %s %s:%s  %s%s\n",
		r.green(">>"), host, r.bold(fmt.Sprintf("%d", port)), r.green("open"), svcPart)
}

// HandleRetryPass announces the slow retry pass.
func (r *Renderer) HandleRetryPass(pending int, timeout time.Duration) {
	if r.quiet {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearBarLocked()
	fmt.Fprintln(r.out, r.dim(fmt.Sprintf("  [*] Retrying %d timed-out probes with %.2fs timeout...",
		pending, timeout.Seconds())))
}

// Summary renders the final report. In quiet mode the output is one
// tab-separated row per open port; otherwise the colorized report.
func (r *Renderer) Summary(sum *models.Summary, portSpec string) {
	r.FinishProgress()

	if r.quiet {
		for _, rep := range sum.Reports {
			for _, p := range rep.OpenPorts {
				fmt.Fprintf(r.out, "%s:%d\topen\t%s\n", rep.Host, p, r.svc.Name(p))
			}
		}

		return
	}

	if sum.Partial {
		fmt.Fprintf(r.out, "\n  %s\n", r.yellow("[!] Aborted - partial results follow."))
	}

	if sum.NothingToScan() {
		fmt.Fprintln(r.out, "  No resolvable targets - nothing to scan.")
		return
	}

	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("-", dividerWidth))

	if len(sum.Reports) > 1 {
		r.renderMultiLines(sum)
	} else {
		r.renderTable(sum)
	}

	r.renderFooter(sum, portSpec)

	fmt.Fprintf(r.out, "%s\n", strings.Repeat("-", dividerWidth))
}

func (r *Renderer) renderTable(sum *models.Summary) {
	for _, rep := range sum.Reports {
		if rep.DNSFailed {
			fmt.Fprintf(r.out, "  %s  - %s\n", rep.Host, r.red("DNS failed"))
			continue
		}

		if len(rep.OpenPorts) == 0 {
			fmt.Fprintf(r.out, "  %s  - no open ports\n", rep.Host)
			continue
		}

		fmt.Fprintf(r.out, "  %s  - %s\n", r.bold(rep.Host),
			r.green(fmt.Sprintf("%d open %s", len(rep.OpenPorts), plural(len(rep.OpenPorts), "port", "ports"))))
		fmt.Fprintln(r.out, r.dim(fmt.Sprintf("  %-12s %-10s SERVICE", "PORT", "STATE")))

		for _, p := range rep.OpenPorts {
			fmt.Fprintf(r.out, "  %-12s %-10s %s\n", fmt.Sprintf("%d/tcp", p), r.green("open"), r.svc.Name(p))
		}

		fmt.Fprintln(r.out)
	}
}

func (r *Renderer) renderMultiLines(sum *models.Summary) {
	// One host per line, easy to grep.
	for _, rep := range sum.Reports {
		if rep.DNSFailed || len(rep.OpenPorts) == 0 {
			continue
		}

		labels := make([]string, len(rep.OpenPorts))
		for i, p := range rep.OpenPorts {
			labels[i] = r.svc.Label(p)
		}

		fmt.Fprintf(r.out, "%s  open: %s\n", rep.Host, strings.Join(labels, ", "))
	}

	fmt.Fprintln(r.out)
}

func (r *Renderer) renderFooter(sum *models.Summary, portSpec string) {
	elapsed := sum.Elapsed.Seconds()

	timeStr := fmt.Sprintf("%.2fs", elapsed)
	if mins := int(elapsed) / 60; mins > 0 {
		timeStr = fmt.Sprintf("%dm %.1fs", mins, elapsed-float64(mins)*60)
	}

	pps := 0.0
	if elapsed > 0 {
		pps = float64(sum.ProbesTotal) / elapsed
	}

	fmt.Fprintf(r.out, "  Done in %s  (%d probes, ~%.0f/s)\n", timeStr, sum.ProbesTotal, pps)

	hostsWithOpen := 0
	for _, rep := range sum.Reports {
		if len(rep.OpenPorts) > 0 {
			hostsWithOpen++
		}
	}

	fmt.Fprintf(r.out, "  Total: %d open %s", sum.OpenCount, plural(int(sum.OpenCount), "port", "ports"))

	if len(sum.Reports) > 1 {
		fmt.Fprintf(r.out, " across %d/%d hosts", hostsWithOpen, len(sum.Reports))
	}

	fmt.Fprintln(r.out)

	if sum.ProbesTotal > 0 && sum.TimeoutCount > 0 {
		pct := float64(sum.TimeoutCount) * 100 / float64(sum.ProbesTotal)
		if pct > 25 {
			fmt.Fprintln(r.out, r.yellow(fmt.Sprintf(
				"  [!] High timeout ratio: %d/%d (%.0f%%) - target may be firewalled, or try reducing -c",
				sum.TimeoutCount, sum.ProbesTotal, pct)))
		}
	}

	if sum.DNSFailedCount > 0 {
		fmt.Fprintln(r.out, r.yellow(fmt.Sprintf("  [!] DNS failed for %d %s",
			sum.DNSFailedCount, plural(sum.DNSFailedCount, "target", "targets"))))
	}

	if sum.OpenCount == 0 && sum.ProbesTotal > 0 {
		var hints []string

		if portSpec == "top" || portSpec == "top1000" || portSpec == "nmap" {
			hints = append(hints, "try -p 1-65535 for a full port scan")
		}

		if r.config.FastTimeout < 500*time.Millisecond {
			hints = append(hints, "try -tfast 0.8 on lossy networks")
		}

		if len(hints) > 0 {
			fmt.Fprintf(r.out, "  Tip: %s\n", strings.Join(hints, "; "))
		}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
