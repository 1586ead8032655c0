package tracecap

// TransactionStore registers completed and in-flight transactions awaiting
// dispatch, keyed by name. Re-registering a name replaces the retrievable
// entry: at most one transaction per distinct name is fetchable at a time.
type TransactionStore struct {
	byName map[string]*Transaction
	order  []*Transaction
}

// NewTransactionStore returns an empty store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{byName: make(map[string]*Transaction)}
}

// Register adds a transaction under its current name.
func (s *TransactionStore) Register(t *Transaction) {
	if _, exists := s.byName[t.Name()]; !exists {
		s.order = append(s.order, t)
	} else {
		// Keep insertion order stable: drop the shadowed entry.
		for i, prev := range s.order {
			if prev.Name() == t.Name() {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.order = append(s.order, t)
	}
	s.byName[t.Name()] = t
}

// Fetch looks a transaction up by name.
func (s *TransactionStore) Fetch(name string) (*Transaction, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// IsEmpty reports whether the store holds no transactions.
func (s *TransactionStore) IsEmpty() bool { return len(s.byName) == 0 }

// All returns the registered transactions in insertion order.
func (s *TransactionStore) All() []*Transaction {
	out := make([]*Transaction, len(s.order))
	copy(out, s.order)
	return out
}

// Reset clears the store. Called after a successful dispatch.
func (s *TransactionStore) Reset() {
	s.byName = make(map[string]*Transaction)
	s.order = nil
}

// ErrorStore registers errors captured outside any transaction, in capture
// order.
type ErrorStore struct {
	list []*Error
}

// NewErrorStore returns an empty store.
func NewErrorStore() *ErrorStore { return &ErrorStore{} }

// Register appends an error.
func (s *ErrorStore) Register(e *Error) { s.list = append(s.list, e) }

// IsEmpty reports whether the store holds no errors.
func (s *ErrorStore) IsEmpty() bool { return len(s.list) == 0 }

// All returns the registered errors in insertion order.
func (s *ErrorStore) All() []*Error {
	out := make([]*Error, len(s.list))
	copy(out, s.list)
	return out
}

// Reset clears the store. Called after a successful dispatch.
func (s *ErrorStore) Reset() { s.list = nil }
