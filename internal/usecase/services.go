package usecase

import (
	"context"

	"trafficlens/internal/domain"
)

// TrafficService wraps the repository and applies the store-wide scope
// restriction before any read reaches the store.
type TrafficService struct {
	repo  TransactionRepository
	scope string
}

func NewTrafficService(repo TransactionRepository, scope string) *TrafficService {
	return &TrafficService{repo: repo, scope: scope}
}

func (s *TrafficService) scoped(f TransactionFilter) TransactionFilter {
	if f.Scope == "" {
		f.Scope = s.scope
	}
	return f
}

func (s *TrafficService) Append(ctx context.Context, tx domain.Transaction) (int64, error) {
	return s.repo.Append(ctx, tx)
}

func (s *TrafficService) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	return s.repo.Get(ctx, id)
}

func (s *TrafficService) List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int, error) {
	f = s.scoped(f)
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f)
}

func (s *TrafficService) ForEach(ctx context.Context, f TransactionFilter, fn func(domain.Transaction) (bool, error)) error {
	f = s.scoped(f)
	if err := f.Validate(); err != nil {
		return err
	}
	return s.repo.ForEach(ctx, f, fn)
}

// Search is the free-text entry point; results are capped the way the
// original capture tooling capped them.
func (s *TrafficService) Search(ctx context.Context, query string, limit int) ([]domain.Transaction, int, error) {
	if query == "" {
		return nil, 0, domain.ErrInvalidQuery
	}
	if limit <= 0 {
		limit = 50
	}
	return s.List(ctx, TransactionFilter{Search: query, Limit: limit})
}

func (s *TrafficService) UpdateNotes(ctx context.Context, id int64, notes string) error {
	return s.repo.UpdateNotes(ctx, id, notes)
}

func (s *TrafficService) MarkAnalyzed(ctx context.Context, id int64) error {
	return s.repo.MarkAnalyzed(ctx, id)
}

func (s *TrafficService) Clear(ctx context.Context) (int, error) {
	return s.repo.Clear(ctx)
}

// Stats is the aggregate view over the (scoped) store.
type Stats struct {
	Total       int            `json:"total"`
	UniqueHosts int            `json:"unique_hosts"`
	Methods     map[string]int `json:"methods"`
	AvgDuration float64        `json:"avg_duration"` // seconds
}

func (s *TrafficService) Stats(ctx context.Context, f TransactionFilter) (Stats, error) {
	f = s.scoped(f)
	f.Limit = 0
	f.Offset = 0
	if err := f.Validate(); err != nil {
		return Stats{}, err
	}
	st := Stats{Methods: make(map[string]int)}
	hosts := make(map[string]struct{})
	var durSum float64
	err := s.repo.ForEach(ctx, f, func(tx domain.Transaction) (bool, error) {
		st.Total++
		st.Methods[tx.Method]++
		hosts[tx.Host] = struct{}{}
		durSum += tx.Duration
		return true, nil
	})
	if err != nil {
		return Stats{}, err
	}
	st.UniqueHosts = len(hosts)
	if st.Total > 0 {
		st.AvgDuration = durSum / float64(st.Total)
	}
	return st, nil
}
