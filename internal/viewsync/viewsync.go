// Package viewsync keeps the detail panel, the story modal and the list
// cards showing the same favorite state for the same story.
package viewsync

import (
	"context"
	"errors"

	"quill/internal/collection"
	"quill/internal/models"
)

// Surface is where a user action originated.
type Surface int

const (
	SurfaceDetail Surface = iota
	SurfaceModal
	SurfaceCard
)

func (s Surface) String() string {
	switch s {
	case SurfaceModal:
		return "modal"
	case SurfaceCard:
		return "card"
	default:
		return "detail"
	}
}

// Selection holds the two independent item slots. Either may be nil, and
// both may reference the same story. Slots are replaced, never edited.
type Selection struct {
	Current *models.Item
	Modal   *models.Item
}

// Outcome is the state after an action: the new selection and the live
// collection view.
type Outcome struct {
	Selection Selection
	View      models.CollectionView
	Changed   bool
}

type Sync struct {
	store *collection.Store
}

func New(store *collection.Store) *Sync {
	return &Sync{store: store}
}

func replaceSlot(slot *models.Item, id string, next func(models.Item) models.Item) *models.Item {
	if slot == nil || slot.ID != id {
		return slot
	}
	it := next(*slot)
	return &it
}

func (sel Selection) with(id string, next func(models.Item) models.Item) Selection {
	return Selection{
		Current: replaceSlot(sel.Current, id, next),
		Modal:   replaceSlot(sel.Modal, id, next),
	}
}

// ToggleFavorite flips item on the server and propagates the new flag to
// every slot showing the same id. The flag comes from the server rather
// than from item, so overlapping toggles of one snapshot settle on what
// the server holds. Detail and modal toggles change only the flag; a card
// toggle adopts the refreshed item. Items without an id are left alone.
//
// When the toggle lands but the list reload fails, the slots are still
// updated and the error wraps collection.ErrRefreshFailed.
func (s *Sync) ToggleFavorite(ctx context.Context, sel Selection, surface Surface, item models.Item) (Outcome, error) {
	if !item.HasID() {
		return Outcome{Selection: sel, View: s.store.View()}, nil
	}

	view, err := s.store.Mutate(ctx, item.ID, models.ActionFavorite)
	if err != nil && !errors.Is(err, collection.ErrRefreshFailed) {
		return Outcome{Selection: sel, View: view}, err
	}
	refreshed := err == nil

	var next func(models.Item) models.Item
	if fresh, ok := view.Find(item.ID); ok && refreshed {
		next = func(it models.Item) models.Item {
			if surface == SurfaceCard {
				return fresh
			}
			it.Favorite = fresh.Favorite
			return it
		}
	} else {
		flag := s.serverFlag(ctx, item)
		next = func(it models.Item) models.Item {
			it.Favorite = flag
			return it
		}
	}
	return Outcome{Selection: sel.with(item.ID, next), View: view, Changed: true}, err
}

// serverFlag asks the server for the story's flag when the refreshed list
// does not carry it, as in the favorites scope after an unfavorite. If
// that fails too the snapshot is flipped.
func (s *Sync) serverFlag(ctx context.Context, item models.Item) bool {
	it, err := s.store.Get(ctx, item.ID)
	if err != nil {
		return !item.Favorite
	}
	return it.Favorite
}

// Delete removes the story on the server and reloads the list. Open
// surfaces keep showing what they showed.
func (s *Sync) Delete(ctx context.Context, sel Selection, id string) (Outcome, error) {
	view, err := s.store.Mutate(ctx, id, models.ActionDelete)
	if err != nil && !errors.Is(err, collection.ErrRefreshFailed) {
		return Outcome{Selection: sel, View: view}, err
	}
	return Outcome{Selection: sel, View: view, Changed: true}, err
}

// Open fetches a story fresh and places it in the modal slot.
func (s *Sync) Open(ctx context.Context, sel Selection, id string) (Selection, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return sel, err
	}
	sel.Modal = &it
	return sel, nil
}

// Show places item in the detail slot.
func Show(sel Selection, item models.Item) Selection {
	sel.Current = &item
	return sel
}

// CloseModal empties the modal slot.
func CloseModal(sel Selection) Selection {
	sel.Modal = nil
	return sel
}
