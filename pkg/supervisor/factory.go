// Per-execution supervisor construction. One call builds one supervisor for
// one user/thread/run; nothing constructed here is ever shared across calls.
package supervisor

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/execution"
	"github.com/cadenza-chat/cadenza/pkg/llm"
	"github.com/cadenza-chat/cadenza/pkg/service"
	"github.com/cadenza-chat/cadenza/pkg/utils"
)

// Options are the collaborators for one supervisor. Execution and Bridge are
// required; LLM is built fresh when absent so no model client state leaks
// between executions.
type Options struct {
	Execution *execution.Context
	Bridge    event.Bridge

	// LLM is optional. When nil a fresh manager is created for this
	// execution.
	LLM *llm.Manager

	// ModelID selects the chat model. Empty falls back to the
	// conversation's model at run time.
	ModelID string

	// Wiring selects eager or deferred tool construction.
	Wiring ToolWiring

	ChatStore *service.ChatStoreService
	Memory    *service.MemoryService
}

// Create builds a supervisor for one execution. Session scope is validated
// before any collaborator is touched; every failure is wrapped uniformly so
// callers match on one message while the cause stays inspectable.
func Create(opts Options) (*SupervisorAgent, error) {
	if opts.Execution == nil {
		return nil, pkgerrors.Wrap(ErrMissingExecution, "failed to create supervisor")
	}
	if opts.Execution.Session.IsGlobal() {
		return nil, pkgerrors.Wrap(ErrIsolationViolation, "failed to create supervisor")
	}
	if opts.Bridge == nil {
		return nil, pkgerrors.Wrap(ErrMissingBridge, "failed to create supervisor")
	}
	if opts.Wiring.IsReady() && opts.Wiring.dispatcher == nil {
		return nil, pkgerrors.Wrap(pkgerrors.New("ready tool wiring requires a dispatcher"), "failed to create supervisor")
	}

	manager := opts.LLM
	if manager == nil {
		manager = llm.NewManager()
	}

	logger := utils.GetLogger()

	a := &SupervisorAgent{
		execution: opts.Execution,
		bridge:    opts.Bridge,
		llm:       manager,
		modelID:   opts.ModelID,
		chatStore: opts.ChatStore,
		memory:    opts.Memory,
		logger:    logger,
	}

	switch {
	case opts.Wiring.IsReady():
		a.dispatcher = opts.Wiring.dispatcher
		a.wired = true
	case opts.Wiring.IsPending():
		a.pendingToolIDs = opts.Wiring.toolIDs
	default:
		logger.Warn("supervisor created without tools, capability degraded",
			"user_id", opts.Execution.UserID,
			"run_id", opts.Execution.RunID)
		a.wired = true
	}

	return a, nil
}
