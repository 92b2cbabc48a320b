package storefront

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrEmptyCart is returned when checking out a cart with no items.
var ErrEmptyCart = errors.New("storefront: cart is empty")

// CartActionType names a cart state transition
type CartActionType string

const (
	AddToCart      CartActionType = "ADD_TO_CART"
	RemoveFromCart CartActionType = "REMOVE_FROM_CART"
	UpdateQuantity CartActionType = "UPDATE_QUANTITY"
	ClearCart      CartActionType = "CLEAR_CART"
)

// CartItem is one product line in the cart
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// CartAction is dispatched to a Cart. Item is used by AddToCart;
// ProductID and Quantity by the others.
type CartAction struct {
	Type      CartActionType
	Item      CartItem
	ProductID string
	Quantity  int
}

// CartState is the persisted cart document
type CartState struct {
	Items []CartItem `json:"items"`
}

// ReduceCart returns the state after applying a. It never mutates state.
// Adding a product already in the cart increases its quantity; a
// quantity of zero or less removes the line.
func ReduceCart(state CartState, a CartAction) (CartState, error) {
	items := append([]CartItem{}, state.Items...)

	switch a.Type {
	case AddToCart:
		item := a.Item
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			return state, errors.New("storefront: cart item needs a product id")
		}
		if item.Price < 0 {
			return state, errors.New("storefront: cart item price cannot be negative")
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if i := indexOfCartItem(items, item.ProductID); i >= 0 {
			items[i].Quantity += item.Quantity
		} else {
			items = append(items, item)
		}

	case RemoveFromCart:
		if i := indexOfCartItem(items, a.ProductID); i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}

	case UpdateQuantity:
		i := indexOfCartItem(items, a.ProductID)
		if i < 0 {
			return state, errors.Errorf("storefront: product %q is not in the cart", a.ProductID)
		}
		if a.Quantity <= 0 {
			items = append(items[:i], items[i+1:]...)
		} else {
			items[i].Quantity = a.Quantity
		}

	case ClearCart:
		items = []CartItem{}

	default:
		return state, errors.Errorf("storefront: unknown cart action %q", a.Type)
	}

	return CartState{Items: items}, nil
}

func indexOfCartItem(items []CartItem, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Cart is a reducer-backed cart persisted to a local JSON file
type Cart struct {
	mu    sync.RWMutex
	state CartState
	store fileStore
}

// OpenCart loads the cart saved at path. An empty path gives an
// in-memory cart.
func OpenCart(path string) (*Cart, error) {
	c := &Cart{state: CartState{Items: []CartItem{}}, store: fileStore{path: path}}
	if err := c.store.load(&c.state); err != nil {
		return nil, err
	}
	if c.state.Items == nil {
		c.state.Items = []CartItem{}
	}
	return c, nil
}

// Dispatch applies a and persists the new state. On error the cart is
// unchanged.
func (c *Cart) Dispatch(a CartAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := ReduceCart(c.state, a)
	if err != nil {
		return err
	}
	if err := c.store.save(next); err != nil {
		return err
	}
	c.state = next
	return nil
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CartItem{}, c.state.Items...)
}

// Count is the total quantity across lines.
func (c *Cart) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.state.Items {
		n += it.Quantity
	}
	return n
}

// Total sums price times quantity, rounded to cents.
func (c *Cart) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := decimal.Zero
	for _, it := range c.state.Items {
		total = total.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2).InexactFloat64()
}
