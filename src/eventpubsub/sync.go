package eventpubsub

import (
	"context"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

type Proc func(ctx context.Context) eventmodels.ActionResult

type SyncProcessItem struct {
	Name string
	Fn   Proc
}

// SyncProcess runs its procs one after another on the calling goroutine. A
// failing proc does not stop the ones after it.
type SyncProcess struct {
	fn []SyncProcessItem
}

func (s *SyncProcess) Add(name string, process Proc) {
	s.fn = append(s.fn, SyncProcessItem{
		Name: name,
		Fn:   process,
	})
}

func (s *SyncProcess) Len() int {
	return len(s.fn)
}

func (s *SyncProcess) Run(ctx context.Context) []eventmodels.ActionResult {
	results := make([]eventmodels.ActionResult, 0, len(s.fn))

	for _, p := range s.fn {
		results = append(results, p.Fn(ctx))
	}

	return results
}
