package services

import (
	"context"
	"sync"
	"time"

	"sos-bknd/internal/models"
	"sos-bknd/internal/push"
)

// notifyResult is the outcome of one push send.
type notifyResult struct {
	Candidate models.VolunteerCandidate
	Err       error
	Duration  time.Duration
}

// fanOut sends one message per candidate concurrently and waits for all of
// them. results[i] always belongs to candidates[i]; a slow or failing send
// never affects the others.
func fanOut(ctx context.Context, n push.Notifier, timeout time.Duration, candidates []models.VolunteerCandidate, build func(models.VolunteerCandidate) push.Message) []notifyResult {
	results := make([]notifyResult, len(candidates))

	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c models.VolunteerCandidate) {
			defer wg.Done()

			sendCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			err := n.Send(sendCtx, c.PushAddress, build(c))
			results[i] = notifyResult{Candidate: c, Err: err, Duration: time.Since(start)}
		}(i, c)
	}
	wg.Wait()

	return results
}
