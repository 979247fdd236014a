package utils

import (
	"context"
	"sync"
)

// ParallelForEach executes a function for each item in parallel with a
// bounded number of workers. The returned slice has one entry per item,
// positionally aligned with the input.
func ParallelForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) []error {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	errors := make([]error, len(items))
	taskChan := make(chan int, len(items))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-taskChan:
					if !ok {
						return
					}
					err := fn(ctx, items[idx])
					mu.Lock()
					errors[idx] = err
					mu.Unlock()
				}
			}
		}()
	}

	for i := range items {
		select {
		case <-ctx.Done():
			close(taskChan)
			wg.Wait()
			return errors
		case taskChan <- i:
		}
	}

	close(taskChan)
	wg.Wait()

	return errors
}

// FirstError returns the first non-nil error from a slice of errors
func FirstError(errors []error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

// CollectErrors collects all non-nil errors from a slice
func CollectErrors(errors []error) []error {
	var result []error
	for _, err := range errors {
		if err != nil {
			result = append(result, err)
		}
	}
	return result
}
