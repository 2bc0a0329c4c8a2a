package model

// All lists every table in migration order.
func All() []any {
	return []any{
		&Session{},
		&Participant{},
		&ConsentEvent{},
		&Job{},
		&Recording{},
		&Transcript{},
		&Report{},
		&ContextMember{},
		&CacheEntry{},
	}
}
