// Package chat answers author questions about a script, grounding the model
// in retrieved scenes, artifacts, and the running conversation.
package chat

import (
	"context"

	"github.com/scriptwell/scriptwell-backend/internal/modules/chat/steps"
)

type Deps struct {
	steps.Deps
}

type Usecases struct {
	d Deps
}

func New(d Deps) *Usecases {
	return &Usecases{d: d}
}

// Chat runs one turn. Answer text streams through onDelta chunk by chunk;
// the returned result carries the resolved intent, topic mode, and tool-loop
// metadata.
func (u *Usecases) Chat(ctx context.Context, req steps.ChatRequest, onDelta func(string)) (*steps.ChatResult, error) {
	if req.Budget == "" {
		req.Budget = steps.BudgetStandard
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}
	return steps.Respond(ctx, u.d.Deps, req, onDelta)
}
