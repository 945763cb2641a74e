// internal/browser/context.go
package browser

import "context"

// CombineContext derives a context from primary (keeping its values, such as the chromedp
// target) that is also canceled when secondary is done. Calling the returned cancel
// releases the link to secondary.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Detach returns a context carrying ctx's values that ignores its cancellation and deadline.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
