package memory

// Read accessors on the store proper. All are O(1) map lookups (or sorted
// listings) over the committed state; mutations always go through
// RunInTransaction.

// GetAccount retrieves a committed account by id.
func (s *Store) GetAccount(id string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.accounts[id]
	if !ok {
		return Account{}, false
	}
	return cloneAccount(a), true
}

// GetSignal retrieves a committed signal by id.
func (s *Store) GetSignal(id string) (Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.state.signals[id]
	if !ok {
		return Signal{}, false
	}
	return cloneSignal(sig), true
}

// GetRecommendedAction retrieves a committed recommended action by id.
func (s *Store) GetRecommendedAction(id string) (RecommendedAction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.actions[id]
	if !ok {
		return RecommendedAction{}, false
	}
	return cloneAction(a), true
}

// GetComment retrieves a committed comment by id.
func (s *Store) GetComment(id string) (Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.comments[id]
	if !ok {
		return Comment{}, false
	}
	return cloneComment(c), true
}

// GetActionPlan retrieves a committed plan by id.
func (s *Store) GetActionPlan(id string) (ActionPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.plans[id]
	if !ok {
		return ActionPlan{}, false
	}
	return clonePlan(p), true
}

// GetNote retrieves a committed note by id.
func (s *Store) GetNote(id string) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.notes[id]
	if !ok {
		return Note{}, false
	}
	return cloneNote(n), true
}

// ListAccounts returns all committed accounts.
func (s *Store) ListAccounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAccounts()
}

// ListSignals returns all committed signals.
func (s *Store) ListSignals() []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListSignals()
}

// ListRecommendedActions returns all committed recommended actions.
func (s *Store) ListRecommendedActions() []RecommendedAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListRecommendedActions()
}

// ListInteractions returns the committed interaction log.
func (s *Store) ListInteractions() []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListInteractions()
}

// ListComments returns all committed comments.
func (s *Store) ListComments() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListComments()
}

// ListActionPlans returns all committed plans.
func (s *Store) ListActionPlans() []ActionPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListActionPlans()
}

// ListNotes returns all committed notes, soft-deleted included.
func (s *Store) ListNotes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListNotes()
}
