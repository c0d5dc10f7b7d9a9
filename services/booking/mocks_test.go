package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	bookingRepo "fieldhand/database/repository/booking"
	categoryRepo "fieldhand/database/repository/category"
	providerRepo "fieldhand/database/repository/provider"
	"fieldhand/models"
	"fieldhand/services/payment"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockGateway signs like the sandbox and lets tests inject failures.
type mockGateway struct {
	*payment.SandboxGateway

	mu          sync.Mutex
	verifyErr   error
	refundErr   error
	cancelErr   error
	verifyCalls int
	refunds     []models.RefundRequest
	cancels     []string
}

func newMockGateway() *mockGateway {
	return &mockGateway{SandboxGateway: payment.NewSandboxGateway("test-secret")}
}

func (m *mockGateway) Verify(ctx context.Context, cb models.PaymentCallback) (*models.Verification, error) {
	m.mu.Lock()
	m.verifyCalls++
	err := m.verifyErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.SandboxGateway.Verify(ctx, cb)
}

func (m *mockGateway) Refund(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error) {
	m.mu.Lock()
	err := m.refundErr
	m.refunds = append(m.refunds, req)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.SandboxGateway.Refund(ctx, req)
}

func (m *mockGateway) CancelOrder(ctx context.Context, orderRef string) error {
	m.mu.Lock()
	err := m.cancelErr
	m.cancels = append(m.cancels, orderRef)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.SandboxGateway.CancelOrder(ctx, orderRef)
}

func (m *mockGateway) setCancelErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelErr = err
}

func (m *mockGateway) cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancels...)
}

func (m *mockGateway) setVerifyErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyErr = err
}

func (m *mockGateway) setRefundErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refundErr = err
}

func (m *mockGateway) callback(orderRef, paymentID string) models.PaymentCallback {
	return models.PaymentCallback{OrderRef: orderRef, PaymentID: paymentID, Signature: m.Sign(orderRef, paymentID)}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Event)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

type recordingRefundQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingRefundQueue) EnqueueRefund(_ context.Context, bookingID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, bookingID)
	return nil
}

// setErr makes every following enqueue fail with err; nil restores it.
func (q *recordingRefundQueue) setErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

func (q *recordingRefundQueue) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

var fixtureStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock      *fakeClock
	gateway    *mockGateway
	bookings   *bookingRepo.MemoryBookingRepo
	categories *categoryRepo.MemoryCategoryRepo
	providers  *providerRepo.MemoryProviderRepo
	publisher  *recordingPublisher
	notifier   *recordingNotifier
	refunds    *recordingRefundQueue
	engine     *Engine
	resolver   *AssignmentResolver
	reconciler *Reconciler
	processor  *RefundProcessor
	service    *DefaultBookingService
}

// newFixture wires an engine over in-memory stores. Category "plumbing"
// accepts final amounts between 800.00 and 2000.00.
func newFixture(t *testing.T, providers ...models.Provider) *fixture {
	t.Helper()
	f := &fixture{
		clock:    newFakeClock(fixtureStart),
		gateway:  newMockGateway(),
		bookings: bookingRepo.NewMemoryBookingRepo(),
		categories: categoryRepo.NewMemoryCategoryRepo(
			models.Category{ID: "plumbing", Name: "Plumbing", MinPrice: 80000, MaxPrice: 200000, RecommendedPrice: 120000, Active: true},
			models.Category{ID: "other", Name: "Other", IsOther: true, Active: true},
			models.Category{ID: "retired", Name: "Retired", MinPrice: 100, MaxPrice: 200, Active: false},
		),
		providers: providerRepo.NewMemoryProviderRepo(providers...),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
		refunds:   &recordingRefundQueue{},
	}
	f.engine = NewEngine(EngineDeps{
		Bookings:   f.bookings,
		Categories: f.categories,
		Providers:  f.providers,
		Gateway:    f.gateway,
		Clock:      f.clock,
		Publisher:  f.publisher,
		Notifier:   f.notifier,
		Refunds:    f.refunds,
		Settings:   DefaultSettings(),
	})
	f.resolver = NewAssignmentResolver(f.engine, f.providers, nil)
	f.reconciler = NewReconciler(f.engine, f.resolver, f.bookings, 50, nil)
	f.processor = NewRefundProcessor(f.engine, f.gateway, nil)
	f.service = NewBookingService(f.engine, f.resolver, f.bookings, nil)
	return f
}

func plumber(id string, ratingSum, ratingCount int64) models.Provider {
	return models.Provider{ID: id, Name: id, CategoryIDs: []string{"plumbing"}, Available: true, RatingSum: ratingSum, RatingCount: ratingCount}
}

// create books "plumbing" for customer c1 two days ahead.
func (f *fixture) create(t *testing.T, initialAmount float64) *models.Booking {
	t.Helper()
	res, err := f.service.CreateBooking(context.Background(), models.CustomerActor("c1"), CreateBookingInput{
		CategoryID:    "plumbing",
		ScheduledAt:   f.clock.Now().Add(48 * time.Hour),
		InitialAmount: initialAmount,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return res.Booking
}

func (f *fixture) payInitial(t *testing.T, b *models.Booking) *BookingView {
	t.Helper()
	v, err := f.service.VerifyInitialPayment(context.Background(), models.CustomerActor(b.CustomerID), b.ID,
		f.gateway.callback(b.InitialPayment.OrderRef, "pay_init_"+b.ID))
	if err != nil {
		t.Fatalf("verify initial payment: %v", err)
	}
	return v
}

// seed stores b directly, bypassing the engine.
func (f *fixture) seed(t *testing.T, b *models.Booking) {
	t.Helper()
	if err := f.bookings.Create(context.Background(), b, models.StatusEvent{BookingID: b.ID, To: b.Status, Version: b.Version}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func (f *fixture) get(t *testing.T, id string) *models.Booking {
	t.Helper()
	b, err := f.bookings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get booking %s: %v", id, err)
	}
	return b
}

func confirmedUnassigned(id string, initial models.PaymentStatus) *models.Booking {
	return &models.Booking{
		ID:             id,
		CustomerID:     "c1",
		CategoryID:     "plumbing",
		Status:         models.StatusConfirmed,
		Version:        1,
		ScheduledAt:    fixtureStart.Add(48 * time.Hour),
		CreatedAt:      fixtureStart,
		UpdatedAt:      fixtureStart,
		Currency:       "inr",
		InitialAmount:  50000,
		InitialPayment: models.PaymentLeg{OrderRef: "order_" + id, Status: initial},
		FinalPayment:   models.PaymentLeg{Status: models.PaymentNone},
		RefundStatus:   models.RefundNone,
	}
}

// racingRepo fails the next conflicts updates as if another writer won.
type racingRepo struct {
	*bookingRepo.MemoryBookingRepo
	conflicts int
}

func (r *racingRepo) Update(ctx context.Context, b *models.Booking, expectedVersion int64, event models.StatusEvent) error {
	if r.conflicts > 0 {
		r.conflicts--
		return bookingRepo.ErrVersionConflict
	}
	return r.MemoryBookingRepo.Update(ctx, b, expectedVersion, event)
}
