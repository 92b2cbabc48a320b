package storefront

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// WishlistActionType names a wishlist state transition
type WishlistActionType string

const (
	AddToWishlist      WishlistActionType = "ADD_TO_WISHLIST"
	RemoveFromWishlist WishlistActionType = "REMOVE_FROM_WISHLIST"
	ClearWishlist      WishlistActionType = "CLEAR_WISHLIST"
)

// WishlistItem is a saved product
type WishlistItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// WishlistAction is dispatched to a Wishlist
type WishlistAction struct {
	Type      WishlistActionType
	Item      WishlistItem
	ProductID string
}

// WishlistState is the persisted wishlist document
type WishlistState struct {
	Items []WishlistItem `json:"items"`
}

// ReduceWishlist returns the state after applying a. Adding a product
// that is already saved is a no-op.
func ReduceWishlist(state WishlistState, a WishlistAction) (WishlistState, error) {
	items := append([]WishlistItem{}, state.Items...)

	switch a.Type {
	case AddToWishlist:
		item := a.Item
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			return state, errors.New("storefront: wishlist item needs a product id")
		}
		if indexOfWishlistItem(items, item.ProductID) < 0 {
			items = append(items, item)
		}
	case RemoveFromWishlist:
		if i := indexOfWishlistItem(items, a.ProductID); i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}
	case ClearWishlist:
		items = []WishlistItem{}
	default:
		return state, errors.Errorf("storefront: unknown wishlist action %q", a.Type)
	}

	return WishlistState{Items: items}, nil
}

func indexOfWishlistItem(items []WishlistItem, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Wishlist is a reducer-backed wishlist persisted to a local JSON file
type Wishlist struct {
	mu    sync.RWMutex
	state WishlistState
	store fileStore
}

// OpenWishlist loads the wishlist saved at path.
func OpenWishlist(path string) (*Wishlist, error) {
	w := &Wishlist{state: WishlistState{Items: []WishlistItem{}}, store: fileStore{path: path}}
	if err := w.store.load(&w.state); err != nil {
		return nil, err
	}
	if w.state.Items == nil {
		w.state.Items = []WishlistItem{}
	}
	return w, nil
}

// Dispatch applies a and persists the new state.
func (w *Wishlist) Dispatch(a WishlistAction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := ReduceWishlist(w.state, a)
	if err != nil {
		return err
	}
	if err := w.store.save(next); err != nil {
		return err
	}
	w.state = next
	return nil
}

// Items returns a copy of the saved products.
func (w *Wishlist) Items() []WishlistItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]WishlistItem{}, w.state.Items...)
}

// Contains reports whether productID is saved.
func (w *Wishlist) Contains(productID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return indexOfWishlistItem(w.state.Items, productID) >= 0
}
