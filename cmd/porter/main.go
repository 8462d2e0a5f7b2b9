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

// porter is a fast TCP connect port scanner.
//
//	porter [flags] <target>
//
// The target is a host, literal address, CIDR block, comma list, IPv4
// last-octet range, or a file with one target expression per line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/carverauto/porter/pkg/logger"
	"github.com/carverauto/porter/pkg/models"
	"github.com/carverauto/porter/pkg/render"
	"github.com/carverauto/porter/pkg/scan"
	"github.com/carverauto/porter/pkg/sweeper"
)

const usageExit = 2

func main() {
	portSpec := flag.String("p", "top", "ports: e.g. 80,443 or 1-65535 or 'popular' or 'top' (default: top 1000)")
	concurrency := flag.Int("c", models.DefaultConcurrency, "max concurrent connects")
	tfast := flag.Float64("tfast", models.DefaultFastTimeout.Seconds(), "fast timeout seconds")
	tslow := flag.Float64("tslow", models.DefaultSlowTimeout.Seconds(), "slow retry timeout seconds")
	noRetry := flag.Bool("no-retry", false, "disable the slow retry pass")
	quiet := flag.Bool("q", false, "only print opens (suppress info lines)")
	debug := flag.Bool("debug", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <target>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Target: host, CIDR, comma-list, IPv4 short range, or file with one target per line\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(usageExit)
	}

	level := "warn"
	if *debug {
		level = "debug"
	}

	log, err := logger.New(logger.Config{Level: level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ports, err := scan.ParsePorts(*portSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No ports to scan: %v\n", err)
		os.Exit(usageExit)
	}

	targets := loadTargets(flag.Arg(0))
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "No targets to scan.")
		os.Exit(usageExit)
	}

	config := models.Config{
		Concurrency: *concurrency,
		FastTimeout: time.Duration(*tfast * float64(time.Second)),
		SlowTimeout: time.Duration(*tslow * float64(time.Second)),
		Retry:       !*noRetry,
		Quiet:       *quiet,
	}
	config.Normalize()

	r := render.New(config)
	r.Banner(targets, scan.DescribePortSpec(*portSpec, len(ports)))

	sw := sweeper.New(config, targets, ports, log)
	sw.OnOpen = r.HandleOpen
	sw.OnResolve = r.HandleResolve
	sw.OnRetryPass = r.HandleRetryPass

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progressCtx, stopProgress := context.WithCancel(ctx)
	go r.WatchProgress(progressCtx, sw.Progress)

	sum, err := sw.Run(ctx)

	stopProgress()

	if err != nil {
		log.Error().Err(err).Msg("Scan failed")
		os.Exit(1)
	}

	r.Summary(sum, *portSpec)
}

// loadTargets expands the positional argument: a file path if one exists,
// otherwise an inline target expression.
func loadTargets(arg string) []string {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		targets, err := scan.LoadTargetsFile(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading targets file: %v\n", err)
			os.Exit(1)
		}

		return targets
	}

	return scan.ParseTargetArg(arg)
}
