package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"storefront-backend/internal/models"
)

const recentOrderLimit = 10

// DashboardStats are the admin dashboard aggregates
type DashboardStats struct {
	TotalOrders    int64           `json:"totalOrders"`
	PendingOrders  int64           `json:"pendingOrders"`
	TotalUsers     int64           `json:"totalUsers"`
	TotalProducts  int64           `json:"totalProducts"`
	Revenue        float64         `json:"revenue"`
	RecentCount    int64           `json:"recentOrdersCount"`
	RecentOrders   []*models.Order `json:"recentOrders"`
	GeneratedAt    time.Time       `json:"generatedAt"`
	FormattedTotal string          `json:"formattedRevenue"`
}

// DashboardService computes read-only admin aggregates
type DashboardService struct {
	orders   OrderStore
	users    UserStore
	products ProductStore
	now      func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(orders OrderStore, users UserStore, products ProductStore) *DashboardService {
	return &DashboardService{orders: orders, users: users, products: products, now: time.Now}
}

// Stats runs every aggregate concurrently. The recent window is the last 24 hours.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	since := now.Add(-24 * time.Hour)
	stats := &DashboardStats{GeneratedAt: now}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalOrders, err = s.orders.Count(ctx, "")
		return err
	})
	g.Go(func() (err error) {
		stats.PendingOrders, err = s.orders.Count(ctx, models.OrderStatusPending)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.users.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalProducts, err = s.products.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Revenue, err = s.orders.Revenue(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentCount, err = s.orders.CountSince(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentOrders, err = s.orders.Recent(ctx, since, recentOrderLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
	}

	if stats.RecentOrders == nil {
		stats.RecentOrders = []*models.Order{}
	}
	stats.Revenue, _ = decimal.NewFromFloat(stats.Revenue).Round(2).Float64()
	stats.FormattedTotal = "$" + decimal.NewFromFloat(stats.Revenue).StringFixed(2)
	return stats, nil
}

var exportHeader = []string{
	"Order Number", "Tracking ID", "Created At", "Customer Type", "Customer Name",
	"Customer Email", "Order Status", "Payment Status", "Items", "Item Count",
	"Total Price", "Tracking Number", "Carrier", "Shipping Address",
}

// ExportCSV writes every order as one flattened row, newest first.
func (s *DashboardService) ExportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	err := s.orders.Each(ctx, func(o *models.Order) error {
		items := make([]string, 0, len(o.OrderItems))
		for _, it := range o.OrderItems {
			items = append(items, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
		}
		a := o.ShippingAddress
		return cw.Write([]string{
			o.OrderNumber,
			o.OrderTrackingID,
			o.CreatedAt.UTC().Format(time.RFC3339),
			string(o.CustomerType),
			o.CustomerName(),
			o.CustomerEmail(""),
			string(o.OrderStatus),
			string(o.PaymentStatus),
			strings.Join(items, "; "),
			strconv.Itoa(o.ItemCount()),
			decimal.NewFromFloat(o.TotalPrice).StringFixed(2),
			o.TrackingNumber,
			o.Shipping.Carrier,
			strings.Join(nonEmpty(a.Address, a.Apartment, a.City, a.State, a.ZipCode, a.Country), ", "),
		})
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
