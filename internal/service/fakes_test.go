package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory ledger with the same locking contract as store.Store
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]models.Product
	lines    map[int64]models.CartLine
	orders   map[int64]models.Order
	items    map[int64][]models.OrderItem
	payments map[int64]models.Payment

	confirmErr error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:   1000,
		products: map[int64]models.Product{},
		lines:    map[int64]models.CartLine{},
		orders:   map[int64]models.Order{},
		items:    map[int64][]models.OrderItem{},
		payments: map[int64]models.Payment{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addProduct(price string) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := models.Product{ID: m.id(), SKU: fmt.Sprintf("SKU-%d", m.nextID), Title: "product", Price: decimal.RequireFromString(price)}
	m.products[p.ID] = p
	return p
}

func (m *memStore) putOrder(order models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *memStore) order(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *memStore) GetCartLines(_ context.Context, userID int64) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartLines(userID), nil
}

func (m *memStore) cartLines(userID int64) []models.CartLine {
	var lines []models.CartLine
	for _, l := range m.lines {
		if l.UserID == userID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memStore) AddCartItem(_ context.Context, userID, productID int64, quantity int) (*models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return nil, store.ErrNotFound
	}
	for id, l := range m.lines {
		if l.UserID == userID && l.ProductID == productID {
			l.Quantity += quantity
			m.lines[id] = l
			return &l, nil
		}
	}
	l := models.CartLine{ID: m.id(), UserID: userID, ProductID: productID, Quantity: quantity}
	m.lines[l.ID] = l
	return &l, nil
}

func (m *memStore) UpdateCartItem(_ context.Context, userID, lineID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[lineID]
	if !ok || l.UserID != userID {
		return store.ErrNotFound
	}
	l.Quantity = quantity
	m.lines[lineID] = l
	return nil
}

func (m *memStore) RemoveCartItem(_ context.Context, userID, lineID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[lineID]
	if !ok || l.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.lines, lineID)
	return nil
}

func (m *memStore) CheckoutCart(_ context.Context, userID int64, build store.OrderBuilder) (*models.Order, []models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.cartLines(userID)
	products := map[int64]models.Product{}
	for _, l := range lines {
		if p, ok := m.products[l.ProductID]; ok {
			products[l.ProductID] = p
		}
	}

	order, items, err := build(lines, products)
	if err != nil {
		return nil, nil, err
	}

	order.ID = m.id()
	order.UpdatedAt = order.CreatedAt
	for i := range items {
		items[i].ID = m.id()
		items[i].OrderID = order.ID
	}
	m.orders[order.ID] = *order
	m.items[order.ID] = append([]models.OrderItem(nil), items...)
	for _, l := range lines {
		delete(m.lines, l.ID)
	}
	return order, items, nil
}

func (m *memStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (m *memStore) GetOrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[orderID], nil
}

func (m *memStore) GetPaymentByOrderID(_ context.Context, orderID int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) listOrders(keep func(models.Order) bool) []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID int64) ([]models.Order, error) {
	return m.listOrders(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (m *memStore) ListOrders(context.Context) ([]models.Order, error) {
	return m.listOrders(func(models.Order) bool { return true }), nil
}

func (m *memStore) ListOrdersByStatus(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	return m.listOrders(func(o models.Order) bool { return o.Status == status }), nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.orders[orderID] = o
	return true, nil
}

func (m *memStore) GetOrderStats(_ context.Context, recent int) (*models.OrderStats, error) {
	recentOrders := m.listOrders(func(models.Order) bool { return true })
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.OrderStats{TotalOrders: int64(len(m.orders)), TotalRevenue: decimal.Zero}
	for _, p := range m.payments {
		stats.TotalRevenue = stats.TotalRevenue.Add(p.Amount)
	}
	if len(recentOrders) > recent {
		recentOrders = recentOrders[:recent]
	}
	stats.RecentOrders = recentOrders
	return stats, nil
}

func (m *memStore) SetGatewayOrderID(_ context.Context, orderID int64, gatewayOrderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !o.GatewayOrderID.Valid {
		o.GatewayOrderID = sql.NullString{String: gatewayOrderID, Valid: true}
		m.orders[orderID] = o
	}
	return &o, nil
}

func (m *memStore) ConfirmPayment(_ context.Context, c store.PaymentConfirmation) (*store.ConfirmResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}

	var order models.Order
	found := false
	for _, o := range m.orders {
		if o.GatewayOrderID.Valid && o.GatewayOrderID.String == c.ProviderOrderID {
			order, found = o, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("order for gateway id %q: %w", c.ProviderOrderID, store.ErrNotFound)
	}

	if order.Status != models.OrderStatusPending {
		existing, ok := m.payments[order.ID]
		if !ok {
			return nil, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, store.ErrOrderNotPending)
		}
		return &store.ConfirmResult{Order: &order, Payment: &existing, AlreadyPaid: true}, nil
	}

	order.Status = models.OrderStatusPaid
	m.orders[order.ID] = order
	payment := models.Payment{
		ID:                m.id(),
		OrderID:           order.ID,
		Provider:          c.Provider,
		ProviderPaymentID: c.ProviderPaymentID,
		ProviderOrderID:   c.ProviderOrderID,
		Amount:            order.TotalAmount,
		Status:            models.PaymentStatusPaid,
		PaidAt:            c.PaidAt,
	}
	m.payments[order.ID] = payment
	return &store.ConfirmResult{Order: &order, Payment: &payment}, nil
}

// fakeGateway hands out sequential session ids
type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	requests []gateway.SessionRequest
	delay    time.Duration
	err      error
}

func (g *fakeGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.requests = append(g.requests, req)
	delay, err := g.delay, g.err
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &gateway.Session{
		ID:       fmt.Sprintf("rp_%d", n),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// memLocker is a process-local Locker; ttl is ignored
type memLocker struct {
	mu    sync.Mutex
	locks map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{locks: map[string]string{}}
}

func (l *memLocker) AcquireLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[key]; held {
		return false, nil
	}
	l.locks[key] = token
	return true, nil
}

func (l *memLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] == token {
		delete(l.locks, key)
	}
	return nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
	err    error
}

func (p *recordingPublisher) record(event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishPaymentSessionCreated(_ context.Context, e *models.PaymentSessionCreatedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
