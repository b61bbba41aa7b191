package orchestrator

import (
	"context"
	"encoding/json"

	"inferd/pkg/types"
)

// Stream lazily processes a sequence of inputs through one model selector,
// emitting one item per input not skipped. The source is consumed exactly
// once. Input N is processed when N mod (skipEvery+1) == 0, which thins
// sequential frame streams without buffering. Cancelling ctx stops further
// dispatch; the in-flight item finishes but is not delivered.
func (o *Orchestrator) Stream(ctx context.Context, source <-chan json.RawMessage, base types.InferRequest, skipEvery int) <-chan types.StreamItem {
	out := make(chan types.StreamItem)
	go func() {
		defer close(out)
		idx := 0
		for {
			select {
			case <-ctx.Done():
				return
			case input, ok := <-source:
				if !ok {
					return
				}
				if skipEvery > 0 && idx%(skipEvery+1) != 0 {
					idx++
					continue
				}
				req := base
				req.Input = input
				item := types.StreamItem{Index: idx}
				if res, err := o.disp.Infer(ctx, req); err != nil {
					item.Error = err.Error()
				} else {
					item.Result = &res
				}
				select {
				case out <- item:
				case <-ctx.Done():
					return
				}
				idx++
			}
		}
	}()
	return out
}
