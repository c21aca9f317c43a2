// Package bulk runs a batch of uploads with bounded concurrency.
package bulk

import (
	"context"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Coordinator runs batches of work items
type Coordinator struct {
	opt
}

// Outcome is the result of one item of a batch
type Outcome struct {
	Index  int           `json:"index"`
	Upload schema.Upload `json:"upload"`
	File   *schema.File  `json:"file,omitempty"`
	Err    error         `json:"-"`
}

// Func runs the item at index. It returns the outcome, with Err set on
// failure.
type Func func(ctx context.Context, index int) Outcome

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func New(opts ...Opt) (*Coordinator, error) {
	self := new(Coordinator)
	if o, err := applyOpts(opts...); err != nil {
		return nil, err
	} else {
		self.opt = o
	}
	return self, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Capacity returns the largest batch which can be run
func (c *Coordinator) Capacity() int {
	return c.concurrency + c.queue
}

// Validate returns an error if a batch of n items cannot be run
func (c *Coordinator) Validate(n int) error {
	switch {
	case n <= 0:
		return schema.ErrValidation.With("empty batch")
	case n > c.Capacity():
		return schema.ErrValidation.Withf("batch of %d items exceeds the capacity of %d", n, c.Capacity())
	default:
		return nil
	}
}

// Run calls fn for each of n items, and returns the outcomes in input order.
// An error is returned only when the batch is rejected. Failures are
// isolated unless fail-fast is set, in which case items which have not
// started after the first failure are cancelled.
func (c *Coordinator) Run(ctx context.Context, n int, fn Func) ([]Outcome, error) {
	if err := c.Validate(n); err != nil {
		return nil, err
	}

	// With fail-fast the group context is cancelled on the first failure
	var g *errgroup.Group
	if c.failfast {
		g, ctx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}
	g.SetLimit(c.concurrency)

	outcomes := make([]Outcome, n)
	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{Index: i, Err: schema.ErrCancelled.Wrap(err)}
				return nil
			}
			outcome := fn(ctx, i)
			outcome.Index = i
			outcomes[i] = outcome
			if c.failfast {
				return outcome.Err
			}
			return nil
		})
	}

	// Errors are reported per outcome
	_ = g.Wait()

	// Return success
	return outcomes, nil
}
