package service

import "time"

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// SetClock replaces the ledger's clock. Intended for tests.
func (s *LedgerService) SetClock(c Clock) { s.now = c }
