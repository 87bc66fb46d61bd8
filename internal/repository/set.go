package repository

// Set groups the repositories the processes share.
type Set struct {
	Profiles ProfileRepository
	Matches  MatchRepository
	Bets     BetRepository
	Entries  LedgerEntryRepository
	Outbox   OutboxRepository
}

// NewPostgresSet returns the pgx-backed repositories.
func NewPostgresSet() Set {
	return Set{
		Profiles: NewProfileRepository(),
		Matches:  NewMatchRepository(),
		Bets:     NewBetRepository(),
		Entries:  NewLedgerEntryRepository(),
		Outbox:   NewOutboxRepository(),
	}
}
