package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is a Store backed by maps. InTx serializes transactions and
// restores a snapshot when the callback fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	clock         Clock
	nextID        uint
	bookings      map[uint]models.Booking
	payments      map[uint]models.Payment
	reassignments []models.DriverReassignment

	// vehicle id to owner id, for owner-scoped listings
	owners map[uint]uint

	failUpdateBooking error
	updateFailures    int
}

func newMemStore(clock Clock) *memStore {
	return &memStore{
		clock:    clock,
		nextID:   100,
		bookings: make(map[uint]models.Booking),
		payments: make(map[uint]models.Payment),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	bookings := make(map[uint]models.Booking, len(m.bookings))
	for k, v := range m.bookings {
		bookings[k] = v
	}
	payments := make(map[uint]models.Payment, len(m.payments))
	for k, v := range m.payments {
		payments[k] = v
	}
	reassignments := append([]models.DriverReassignment(nil), m.reassignments...)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.bookings, m.payments, m.reassignments = bookings, payments, reassignments
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) LockVehicle(context.Context, uint) error { return nil }

func (m *memStore) FindOverlapping(_ context.Context, vehicleID uint, start, end time.Time, statuses []models.BookingStatus) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.VehicleID != vehicleID || !hasStatus(statuses, b.Status) {
			continue
		}
		if b.StartDate.Before(end) && b.OccupiedUntil.After(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) CreateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	b.CreatedAt = m.clock.Now()
	b.UpdatedAt = b.CreatedAt
	if b.Version == 0 {
		b.Version = 1
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) GetBooking(_ context.Context, id uint) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, r := range m.reassignments {
		if r.BookingID == id {
			b.Reassignments = append(b.Reassignments, r)
		}
	}
	return &b, nil
}

func (m *memStore) UpdateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateBooking != nil && m.updateFailures > 0 {
		m.updateFailures--
		return m.failUpdateBooking
	}
	cur, ok := m.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != b.Version {
		return ErrStaleVersion
	}
	b.Version++
	stored := *b
	stored.Reassignments = nil
	m.bookings[b.ID] = stored
	return nil
}

func (m *memStore) AddReassignment(_ context.Context, r *models.DriverReassignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.reassignments = append(m.reassignments, *r)
	return nil
}

func (m *memStore) ListBookings(_ context.Context, f BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		driven := f.DriverID != nil && b.IsAssignedDriver(*f.DriverID)
		owned := f.OwnerID != nil && m.owners[b.VehicleID] == *f.OwnerID
		if (f.DriverID != nil || f.OwnerID != nil) && !driven && !owned {
			continue
		}
		if f.VehicleID != nil && b.VehicleID != *f.VehicleID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, b.Status) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListExpiredPending(_ context.Context, createdBefore time.Time, limit int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusPending && b.CreatedAt.Before(createdBefore) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CreatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = m.clock.Now()
	m.payments[p.ID] = *p
	return nil
}

func (m *memStore) UpdatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	if p.RefundedAmount > p.Amount {
		return errors.New("refunded amount exceeds payment amount")
	}
	m.payments[p.ID] = *p
	return nil
}

func (m *memStore) CompletedPayment(_ context.Context, bookingID uint) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Payment
	for _, p := range m.payments {
		if p.BookingID == bookingID && p.Status == models.PaymentRecordCompleted {
			if found == nil || p.ID > found.ID {
				p := p
				found = &p
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *memStore) ListPayments(_ context.Context, bookingID uint) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) booking(t *testing.T, id uint) models.Booking {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		t.Fatalf("booking %d not stored", id)
	}
	return b
}

func (m *memStore) paymentsFor(id uint) []models.Payment {
	list, _ := m.ListPayments(context.Background(), id)
	return list
}

// setStatus rewrites a stored booking, bypassing the state machine.
func (m *memStore) setStatus(id uint, st models.BookingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	b.Status = st
	m.bookings[id] = b
}

func hasStatus(list []models.BookingStatus, s models.BookingStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

type fakeUsers struct {
	mu     sync.Mutex
	users  map[uint]*models.User
	ledger []models.WalletTransaction
}

func (f *fakeUsers) GetUser(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateAddress(_ context.Context, id uint, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Address = address
	return nil
}

func (f *fakeUsers) DebitWallet(_ context.Context, userID, bookingID uint, amount float64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound
	}
	if u.WalletBalance < amount {
		return ErrInsufficientFunds
	}
	u.WalletBalance -= amount
	f.ledger = append(f.ledger, models.WalletTransaction{UserID: userID, BookingID: bookingID, Amount: -amount, Kind: models.WalletDebit, Reference: ref})
	return nil
}

func (f *fakeUsers) CreditWallet(_ context.Context, userID, bookingID uint, amount float64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.WalletBalance += amount
	f.ledger = append(f.ledger, models.WalletTransaction{UserID: userID, BookingID: bookingID, Amount: amount, Kind: models.WalletRefund, Reference: ref})
	return nil
}

func (f *fakeUsers) balance(id uint) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].WalletBalance
}

type fakeVehicles struct {
	mu       sync.Mutex
	vehicles map[uint]*models.Vehicle
}

func (f *fakeVehicles) GetVehicle(_ context.Context, id uint) (*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVehicles) SetAvailability(_ context.Context, id uint, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[id]
	if !ok {
		return ErrNotFound
	}
	v.Availability = available
	return nil
}

func (f *fakeVehicles) available(id uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vehicles[id].Availability
}

type refundCall struct {
	TransactionID  string
	Amount         float64
	IdempotencyKey string
}

type fakeGateway struct {
	mu           sync.Mutex
	chargeStatus GatewayStatus
	chargeErr    error
	refundStatus GatewayStatus
	refundErr    error
	charges      []ChargeRequest
	refunds      []refundCall
	refundByKey  map[string]RefundResponse
}

func (g *fakeGateway) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if g.chargeErr != nil {
		return ChargeResult{}, g.chargeErr
	}
	return ChargeResult{Status: g.chargeStatus, TransactionID: "pi_test_" + req.IdempotencyKey[:8]}, nil
}

// Refund replays the first response for a repeated idempotency key, the
// way Stripe does.
func (g *fakeGateway) Refund(_ context.Context, req RefundRequest) (RefundResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return RefundResponse{}, g.refundErr
	}
	if resp, ok := g.refundByKey[req.IdempotencyKey]; ok {
		return resp, nil
	}
	g.refunds = append(g.refunds, refundCall{TransactionID: req.TransactionID, Amount: req.Amount, IdempotencyKey: req.IdempotencyKey})
	resp := RefundResponse{Status: g.refundStatus, RefundID: fmt.Sprintf("re_test_%d", len(g.refunds))}
	if req.IdempotencyKey != "" {
		if g.refundByKey == nil {
			g.refundByKey = make(map[string]RefundResponse)
		}
		g.refundByKey[req.IdempotencyKey] = resp
	}
	return resp, nil
}

func (g *fakeGateway) refundedTotal() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total float64
	for _, r := range g.refunds {
		total += r.Amount
	}
	return total
}

type sentNotice struct {
	Recipient uint
	Template  Template
	Data      map[string]any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *fakeNotifier) Send(_ context.Context, recipient uint, tmpl Template, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{Recipient: recipient, Template: tmpl, Data: data})
	return nil
}

func (n *fakeNotifier) templatesFor(recipient uint) []Template {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Template
	for _, s := range n.sent {
		if s.Recipient == recipient {
			out = append(out, s.Template)
		}
	}
	return out
}

type fakeEvents struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeEvents) Publish(_ context.Context, e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) types() []EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

const (
	userID        uint = 1
	ownerID       uint = 2
	adminID       uint = 3
	otherDriverID uint = 4
	strangerID    uint = 5
	vehicleID     uint = 10
)

type testEnv struct {
	svc      *Service
	store    *memStore
	users    *fakeUsers
	vehicles *fakeVehicles
	gateway  *fakeGateway
	notifier *fakeNotifier
	events   *fakeEvents
	clock    *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	env := &testEnv{
		store: newMemStore(clock),
		users: &fakeUsers{users: map[uint]*models.User{
			userID:        {Name: "Asha", Email: "asha@example.com", Role: models.RoleUser, WalletBalance: 1000},
			ownerID:       {Name: "Ravi", Email: "ravi@example.com", Role: models.RoleDriver},
			adminID:       {Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin},
			otherDriverID: {Name: "Kiran", Email: "kiran@example.com", Role: models.RoleDriver},
			strangerID:    {Name: "Mo", Email: "mo@example.com", Role: models.RoleUser},
		}},
		vehicles: &fakeVehicles{vehicles: map[uint]*models.Vehicle{
			vehicleID: {
				VehicleType:    models.VehicleTypeCar,
				Name:           "Swift",
				Rent:           100,
				OwnerID:        ownerID,
				ApprovalStatus: models.ApprovalApproved,
				Availability:   true,
			},
		}},
		gateway:  &fakeGateway{chargeStatus: GatewaySucceeded, refundStatus: GatewaySucceeded},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
		clock:    clock,
	}
	for id, u := range env.users.users {
		u.ID = id
	}
	env.store.owners = make(map[uint]uint)
	for id, v := range env.vehicles.vehicles {
		v.ID = id
		env.store.owners[id] = v.OwnerID
	}

	env.svc = NewService(Deps{
		Store:    env.store,
		Users:    env.users,
		Vehicles: env.vehicles,
		Gateway:  env.gateway,
		Notifier: env.notifier,
		Events:   env.events,
		Clock:    clock,
	}, Config{MinimumCharge: 50, DefaultRefundRate: 0.8, GatewayTimeout: time.Second})
	return env
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func (e *testEnv) createInput(start, end int) CreateBookingInput {
	return CreateBookingInput{
		UserID:        userID,
		VehicleID:     vehicleID,
		StartDate:     day(start),
		EndDate:       day(end),
		PickupTime:    time.Date(2000, 1, 1, 10, 30, 0, 0, time.UTC),
		Duration:      end - start,
		LicenseNumber: "KA01-2024-0001",
		Address: AddressFields{
			Location: "12 MG Road",
			City:     "Bengaluru",
			State:    "Karnataka",
			Country:  "India",
			Pincode:  "560001",
		},
	}
}

func (e *testEnv) mustCreate(t *testing.T, in CreateBookingInput) *models.Booking {
	t.Helper()
	b, err := e.svc.CreateBooking(context.Background(), in)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (e *testEnv) mustPay(t *testing.T, id uint, method models.PaymentMethod) *PaymentResult {
	t.Helper()
	res, err := e.svc.ProcessPayment(context.Background(), PaymentInput{
		BookingID:     id,
		ActorID:       userID,
		ActorRole:     models.RoleUser,
		Method:        method,
		CredentialRef: "pm_card_visa",
	})
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	return res
}
