package escrow

import (
	"context"
	"sort"
	"sync"
)

// Store persiste os jogos. Update serializa as mutações de um mesmo jogo:
// fn recebe uma cópia, e só é gravada se retornar nil.
type Store interface {
	Insert(ctx context.Context, g *Game) error
	Get(ctx context.Context, id GameID) (*Game, error)
	Update(ctx context.Context, id GameID, fn func(g *Game) error) error
	List(ctx context.Context) ([]*Game, error)
}

type memoryEntry struct {
	mu   sync.Mutex
	game *Game
}

// MemoryStore guarda os jogos em memória, com um lock por jogo
type MemoryStore struct {
	mu    sync.RWMutex
	games map[GameID]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[GameID]*memoryEntry)}
}

func (s *MemoryStore) Insert(_ context.Context, g *Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[g.ID]; exists {
		return ErrDuplicateGame
	}
	s.games[g.ID] = &memoryEntry{game: g.Clone()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id GameID) (*Game, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id GameID, fn func(g *Game) error) error {
	e, ok := s.entry(id)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.game.Clone()
	if err := fn(working); err != nil {
		return err
	}
	e.game = working
	return nil
}

// List devolve os jogos ordenados por data de criação
func (s *MemoryStore) List(_ context.Context) ([]*Game, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.games))
	for _, e := range s.games {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*Game, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.game.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) entry(id GameID) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.games[id]
	return e, ok
}
