package save

import (
	"context"
	"errors"
	"fmt"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/game"
)

// Store pairs a Repository with the codec.
type Store struct {
	Repo    Repository
	Catalog *catalog.Registry
	Balance config.Balance
}

// Load returns the state in slot, or a fresh state if the slot is empty.
// A slot holding something that is not a document also yields a fresh state
// alongside ErrCorrupt so the caller can log it.
func (s Store) Load(ctx context.Context, slot string) (game.State, error) {
	body, err := s.Repo.Load(ctx, slot)
	if errors.Is(err, ErrNotFound) {
		return game.NewState(s.Catalog, s.Balance), nil
	}
	if err != nil {
		return game.State{}, fmt.Errorf("load slot %s: %w", slot, err)
	}
	st, err := Decode(body, s.Catalog, s.Balance)
	if err != nil {
		return game.NewState(s.Catalog, s.Balance), fmt.Errorf("slot %s: %w", slot, err)
	}
	return st, nil
}

func (s Store) Save(ctx context.Context, slot string, st game.State) error {
	body, err := Encode(st)
	if err != nil {
		return err
	}
	if err := s.Repo.Save(ctx, slot, body); err != nil {
		return fmt.Errorf("save slot %s: %w", slot, err)
	}
	return nil
}
