package worker

import (
	"context"
	"sync"
)

// Task is one independent unit of work, keyed by image identity.
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

// Result reports the outcome of one Task.
type Result struct {
	Key string
	Err error
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	size int
	// OnDone is called from the collecting goroutine after each task finishes,
	// in completion order. It is never called concurrently.
	OnDone func(Result)
}

// New returns a pool with size workers (at least one).
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

type indexedResult struct {
	pos int
	Result
}

// Run executes every task and returns their results in submission order.
// Tasks not yet started when ctx is cancelled report ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	taskChan := make(chan int, p.size)
	resultsChan := make(chan indexedResult, p.size*2)
	var wg sync.WaitGroup

	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range taskChan {
				t := tasks[pos]
				var err error
				if err = ctx.Err(); err == nil {
					err = t.Run(ctx)
				}
				resultsChan <- indexedResult{pos: pos, Result: Result{Key: t.Key, Err: err}}
			}
		}()
	}

	go func() {
		for pos := range tasks {
			taskChan <- pos
		}
		close(taskChan)
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for res := range resultsChan {
		results[res.pos] = res.Result
		if p.OnDone != nil {
			p.OnDone(res.Result)
		}
	}
	return results
}
