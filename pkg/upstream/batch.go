package upstream

import (
	"context"

	"meridian-hq/saturn/pkg/quota"
)

// BatchItem is one sub-request inside a batched upstream call.
type BatchItem struct {
	// Method is the sub-request's HTTP method.
	Method string

	// RelativeURL is the sub-request's path within the batch envelope.
	RelativeURL string

	// IsWrite selects the write point cost for this sub-request.
	IsWrite bool
}

// BatchCost returns the total point cost of a batch under the ledger's
// tier.
func (e *Executor) BatchCost(items []BatchItem) float64 {
	tier := e.ledger.Tier()
	total := 0.0
	for _, item := range items {
		if item.IsWrite {
			total += tier.WriteCost
		} else {
			total += tier.ReadCost
		}
	}
	return total
}

// ExecuteBatch performs a batched upstream call under quota control.
//
// The whole batch is rejected up front with BatchTooLargeError when its
// total point cost exceeds the headroom fraction of the point ceiling,
// leaving room for concurrent subjects sharing the quota bucket.
// Otherwise the batch is admitted as a single read-cost call, matching
// how the upstream platform charges the batch envelope.
func (e *Executor) ExecuteBatch(ctx context.Context, subject quota.Subject, items []BatchItem, call Call) (*Response, error) {
	total := e.BatchCost(items)
	budget := e.ledger.Tier().MaxPoints * e.config.BatchHeadroom

	if total > budget {
		return nil, &BatchTooLargeError{
			TotalCost: total,
			Budget:    budget,
		}
	}

	return e.Execute(ctx, Request{
		Subject:  subject,
		Endpoint: "/batch",
		Method:   "POST",
		IsWrite:  false,
	}, call)
}
