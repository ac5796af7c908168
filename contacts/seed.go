package contacts

import (
	"context"
	"fmt"
	"time"
)

var sampleContacts = []Update{
	{First: "Ada", Last: "Lovelace", Notes: "Wrote the first published algorithm for the Analytical Engine."},
	{First: "Grace", Last: "Hopper", Twitter: "gracehopper", Notes: "COBOL. Nanoseconds on a string."},
	{First: "Alan", Last: "Turing"},
	{First: "Edsger", Last: "Dijkstra", Notes: "Shortest paths, semaphores, and strong opinions on goto."},
	{First: "Barbara", Last: "Liskov"},
	{First: "Ken", Last: "Thompson", Twitter: "ken"},
	{First: "Rob", Last: "Pike"},
	{First: "Radia", Last: "Perlman", Notes: "Spanning tree protocol."},
}

// Seed fills an empty database with sample contacts and reports how many
// were inserted. A database that already holds contacts is left alone.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.store.CountContacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("contacts: seed: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	base := time.Now().UnixMilli()
	for i, u := range sampleContacts {
		c := &Contact{
			ID:        s.newID(),
			First:     u.First,
			Last:      u.Last,
			Twitter:   u.Twitter,
			Notes:     u.Notes,
			CreatedAt: base + int64(i),
		}
		if err := s.store.InsertContact(ctx, c); err != nil {
			return i, fmt.Errorf("contacts: seed %s %s: %w", u.First, u.Last, err)
		}
	}
	s.logger.InfoContext(ctx, "contacts: seeded", "count", len(sampleContacts))
	return len(sampleContacts), nil
}
