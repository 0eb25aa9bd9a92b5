// Package paginate drains multi-page REST listings through one generic
// loop. Resource services expose a page function; Loop calls it page by
// page, strictly sequentially, and flattens the results.
//
// This is the only pagination loop in the SDK; resource services reuse it
// rather than reimplementing the draining logic.
package paginate

import (
	"context"
	"time"

	"storesdk/model"
)

// Pagination is the page metadata a paged endpoint reports. Zero values
// mean "not provided": a TotalPages of 0 is unknown, a Next of 0 means no
// next page was advertised.
type Pagination struct {
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Next       int `json:"next"`
}

// Result carries one page's outcome, or the accumulated outcome of a full
// loop: flattened data, the last-seen pagination metadata, and the
// last-seen error if any. Data and Err can both be set.
type Result[T any] struct {
	Data       []T
	Pagination Pagination
	Err        error
}

// PageFunc fetches one page. The page cursor arrives in params under the
// configured page field.
type PageFunc[T any] func(ctx context.Context, params map[string]any) Result[T]

// Options tunes a Loop invocation.
type Options[T any] struct {
	// PageField is the params key that carries the page number.
	// Empty means "page".
	PageField string

	// MaxPages stops the loop after that many fetches. Zero means no cap.
	MaxPages int

	// Delay inserts a fixed pause before every request after the first.
	// The pause honors ctx: aborting during the delay prevents the next
	// request from being issued at all.
	Delay time.Duration

	// ContinueOnError keeps the loop running past a page error. The
	// returned Err is then the last error observed, even if later pages
	// succeed. The zero value stops at the first erroring page.
	ContinueOnError bool

	// OnPage, if set, runs after each page completes and before the next
	// request is issued. Returning an error halts the loop.
	OnPage func(ctx context.Context, page Result[T]) error
}

// Loop fetches pages starting at 1 until a stop condition is met: empty
// page, known total reached, no next-page signal, MaxPages, context abort,
// or (by default) a page error. The next cursor comes from the page's
// Pagination.Next when advertised, else page+1.
func Loop[T any](ctx context.Context, fn PageFunc[T], params map[string]any, opts Options[T]) Result[T] {
	pageField := opts.PageField
	if pageField == "" {
		pageField = "page"
	}

	var out Result[T]
	page := 1
	fetched := 0

	for {
		if err := ctx.Err(); err != nil {
			out.Err = model.NewAbortedError(err)
			return out
		}
		if fetched > 0 && opts.Delay > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				out.Err = model.NewAbortedError(err)
				return out
			}
		}

		p := make(map[string]any, len(params)+1)
		for k, v := range params {
			p[k] = v
		}
		p[pageField] = page

		res := fn(ctx, p)
		fetched++
		out.Pagination = res.Pagination
		out.Data = append(out.Data, res.Data...)

		if opts.OnPage != nil {
			if err := opts.OnPage(ctx, res); err != nil {
				out.Err = err
				return out
			}
		}

		if res.Err != nil {
			out.Err = res.Err // last-seen error wins
			if !opts.ContinueOnError {
				return out
			}
			// An erroring page carries no trustworthy metadata; advance
			// blindly, bounded by MaxPages and the caller's context.
			if opts.MaxPages > 0 && fetched >= opts.MaxPages {
				return out
			}
			page++
			continue
		}

		if len(res.Data) == 0 {
			return out
		}
		if opts.MaxPages > 0 && fetched >= opts.MaxPages {
			return out
		}
		if res.Pagination.TotalPages > 0 {
			if page >= res.Pagination.TotalPages {
				return out
			}
		} else if res.Pagination.Next == 0 {
			// Without a known page count, next is the sole continuation
			// signal.
			return out
		}

		if res.Pagination.Next > 0 {
			page = res.Pagination.Next
		} else {
			page++
		}
	}
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
