package sessions

// Store persists the single device Session.
// Implementations are safe for concurrent use; the last Save wins.
type Store interface {
	// Save validates and persists session, replacing any previous one
	Save(session Session) error

	// Load returns the current session, or nil when none is stored. Absence is not an error.
	Load() (*Session, error)

	// Clear removes the stored session. Clearing an empty store succeeds.
	Clear() error
}
