// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"context"
	"errors"
	"fmt"
)

// Step is one strategy in an ordered fallback chain.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// FirstSuccess runs steps in order and returns the first successful result
// together with the name of the step that produced it. If every step fails
// the joined errors are returned, so callers can log the whole chain.
func FirstSuccess[T any](ctx context.Context, steps []Step[T]) (T, string, error) {
	var zero T
	var errs []error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := step.Run(ctx)
		if err == nil {
			return v, step.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
	}
	return zero, "", errors.Join(errs...)
}
