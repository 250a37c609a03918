package memory

import "context"

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&stats.TotalSessions); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&stats.TotalObservations); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&stats.TotalMemories); err != nil {
		return nil, err
	}

	byType, err := s.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	stats.ObservationsByType = byType

	return stats, nil
}
