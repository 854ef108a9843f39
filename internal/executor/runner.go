// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package executor

import (
	"sync"
)

// Runner runs request handlers. Go may block until the handler can start.
type Runner interface {
	Go(fn func())
}

type goRunner struct{}

func (goRunner) Go(fn func()) { go fn() }

// WorkerPool runs handlers on a fixed set of goroutines. Go blocks while
// every worker is busy.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ Runner = (*WorkerPool)(nil)

// NewWorkerPool starts n workers; n below one starts one.
func NewWorkerPool(n int) *WorkerPool {
	p := &WorkerPool{tasks: make(chan func())}
	for range max(1, n) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for fn := range p.tasks {
				fn()
			}
		}()
	}
	return p
}

func (p *WorkerPool) Go(fn func()) {
	p.tasks <- fn
}

// Close waits for running handlers and stops the workers. Go must not be
// called after Close.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}
