package execution

import "gorm.io/gorm"

// SessionScope marks how a database session was obtained.
type SessionScope string

const (
	// ScopeRequest marks a session created for the current request or
	// message-processing cycle and owned by the calling scope.
	ScopeRequest SessionScope = "request"
	// ScopeGlobal marks a session held in process-wide state. Sessions with
	// this scope are rejected by the supervisor factory: sharing one session
	// across users breaks isolation.
	ScopeGlobal SessionScope = "global"
)

// Session wraps a database handle with its scope marker. The factory layer
// never opens or closes sessions itself; lifetime belongs to the caller.
type Session struct {
	db    *gorm.DB
	scope SessionScope
}

// NewRequestSession wraps a request-scoped database handle.
func NewRequestSession(db *gorm.DB) *Session {
	return &Session{db: db, scope: ScopeRequest}
}

// NewSession wraps a database handle with an explicit scope.
func NewSession(db *gorm.DB, scope SessionScope) *Session {
	return &Session{db: db, scope: scope}
}

// DB returns the underlying database handle.
func (s *Session) DB() *gorm.DB {
	return s.db
}

// Scope returns the session's scope marker.
func (s *Session) Scope() SessionScope {
	return s.scope
}

// IsGlobal reports whether the session is process-wide state.
func (s *Session) IsGlobal() bool {
	return s != nil && s.scope == ScopeGlobal
}
