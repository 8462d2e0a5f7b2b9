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

package render

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/carverauto/porter/pkg/sweeper"
)

const progressInterval = time.Second

// WatchProgress samples the sweeper at 1 Hz and redraws the progress bar on
// stderr. It does nothing in quiet mode or without a terminal, and returns
// when ctx is canceled.
func (r *Renderer) WatchProgress(ctx context.Context, progress func() sweeper.Progress) {
	if r.quiet || !r.isTTY {
		return
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.updateBar(progress())
		}
	}
}

// FinishProgress tears the bar down before the summary prints.
func (r *Renderer) FinishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		_ = r.bar.Clear()
		r.bar = nil
	}
}

func (r *Renderer) updateBar(p sweeper.Progress) {
	if p.Total == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil {
		r.bar = progressbar.NewOptions64(p.Total,
			progressbar.OptionSetWriter(r.errOut),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(false),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "#",
				SaucerPadding: "-",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	if p.Total != r.bar.GetMax64() {
		r.bar.ChangeMax64(p.Total)
	}

	r.bar.Describe(fmt.Sprintf("[%s] %d open", p.Label, p.Opens))
	_ = r.bar.Set64(p.Done)
}

func (r *Renderer) clearBarLocked() {
	if r.bar != nil {
		_ = r.bar.Clear()
	}
}
