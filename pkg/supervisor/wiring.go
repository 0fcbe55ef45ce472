package supervisor

import "github.com/cadenza-chat/cadenza/pkg/tools"

type wiringState int

const (
	wiringNone wiringState = iota
	wiringReady
	wiringPending
)

// ToolWiring describes how a supervisor gets its tools: either an already
// built dispatcher (ready) or a set of tool ids resolved once on first run
// (pending). The zero value means no tools.
type ToolWiring struct {
	state      wiringState
	dispatcher *tools.Dispatcher
	toolIDs    []tools.ToolID
}

// ReadyWiring wires an already built dispatcher.
func ReadyWiring(d *tools.Dispatcher) ToolWiring {
	return ToolWiring{state: wiringReady, dispatcher: d}
}

// PendingWiring defers tool construction to the supervisor's first run, when
// the execution context is attached and services are known.
func PendingWiring(ids ...tools.ToolID) ToolWiring {
	return ToolWiring{state: wiringPending, toolIDs: ids}
}

// IsReady reports whether a dispatcher is already attached.
func (w ToolWiring) IsReady() bool { return w.state == wiringReady }

// IsPending reports whether tool construction is deferred.
func (w ToolWiring) IsPending() bool { return w.state == wiringPending }

// IsEmpty reports whether no tools were requested at all.
func (w ToolWiring) IsEmpty() bool { return w.state == wiringNone }
