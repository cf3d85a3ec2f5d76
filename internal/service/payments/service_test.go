package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/paveldemidov/flightbook/internal/bookingref"
	"github.com/paveldemidov/flightbook/internal/domain"
	"github.com/paveldemidov/flightbook/internal/gateway/razorpay"
	"github.com/paveldemidov/flightbook/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// Mock структуры

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Search(ctx context.Context, criteria repository.FlightSearch) ([]domain.Flight, error) {
	args := m.Called(ctx, criteria)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) ReserveSeats(ctx context.Context, tx pgx.Tx, flightID int64, count int) (*domain.Flight, error) {
	args := m.Called(ctx, tx, flightID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Insert(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error {
	args := m.Called(ctx, tx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) FindByPaymentID(ctx context.Context, userID int64, paymentID string) (*domain.Booking, error) {
	args := m.Called(ctx, userID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Insert(ctx context.Context, attempt *domain.PaymentAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.PaymentAttempt, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentAttempt), args.Error(1)
}

func (m *MockLedgerRepository) MarkProcessed(ctx context.Context, paymentID, bookingRef string, recovered bool) error {
	args := m.Called(ctx, paymentID, bookingRef, recovered)
	return args.Error(0)
}

func (m *MockLedgerRepository) MarkFailed(ctx context.Context, paymentID, reason string) error {
	args := m.Called(ctx, paymentID, reason)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindOrphans(ctx context.Context, olderThan time.Duration, maxAttempts int) ([]domain.PaymentAttempt, error) {
	args := m.Called(ctx, olderThan, maxAttempts)
	return args.Get(0).([]domain.PaymentAttempt), args.Error(1)
}

func (m *MockLedgerRepository) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerStats), args.Error(1)
}

// MockTxManager выполняет функцию транзакции с nil tx, если не задана ошибка
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*razorpay.Order, error) {
	args := m.Called(ctx, amountMinor, currency, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*razorpay.Order), args.Error(1)
}

func (m *MockGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*razorpay.Payment), args.Error(1)
}

func (m *MockGateway) KeyID() string {
	args := m.Called()
	return args.String(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateFlights(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

func signPayment(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type serviceMocks struct {
	users    *MockUserRepository
	flights  *MockFlightRepository
	bookings *MockBookingRepository
	ledger   *MockLedgerRepository
	txm      *MockTxManager
	producer *MockProducer
}

func newTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		users:    &MockUserRepository{},
		flights:  &MockFlightRepository{},
		bookings: &MockBookingRepository{},
		ledger:   &MockLedgerRepository{},
		txm:      &MockTxManager{},
		producer: &MockProducer{},
	}
	log := zap.NewNop()
	service := &Service{
		users:           m.users,
		flights:         m.flights,
		bookings:        m.bookings,
		ledger:          m.ledger,
		txm:             m.txm,
		producer:        m.producer,
		attempts:        &attemptLog{repo: m.ledger, log: log},
		log:             log,
		secrets:         Secrets{KeySecret: testKeySecret, WebhookSecret: testWebhookSecret},
		eventsTopic:     "payment_events",
		orphanThreshold: 5 * time.Minute,
		maxAttempts:     3,
	}
	return service, m
}

func testFlight(seats int) *domain.Flight {
	return &domain.Flight{
		ID:             4,
		FlightNumber:   "FB-101",
		From:           "Moscow",
		To:             "Kazan",
		DepartureTime:  time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		ArrivalTime:    time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Airline:        "FlightBook Air",
		PriceCents:     550000,
		SeatsAvailable: seats,
	}
}

// ============================ Тесты для VerifyPayment ============================

// Тест 1: Верификация платежа - успешный сценарий
func TestService_VerifyPayment_Success(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	input := VerifyPaymentInput{
		OrderID:    "order_123",
		PaymentID:  "pay_456",
		Signature:  signPayment("order_123", "pay_456"),
		UserID:     7,
		FlightID:   4,
		Passengers: 2,
	}

	// Настройка моков
	m.users.On("FindByID", ctx, int64(7)).Return(&domain.User{ID: 7, Username: "ivan"}, nil).Once()
	m.bookings.On("FindByPaymentID", ctx, int64(7), "pay_456").Return(nil, repository.ErrNotFound).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(10), nil).Once()
	m.ledger.On("Insert", ctx, mock.AnythingOfType("*domain.PaymentAttempt")).Return(nil).Once()
	m.txm.On("WithinTx", ctx, mock.Anything).Return(nil).Once()
	m.flights.On("ReserveSeats", ctx, nil, int64(4), 2).Return(testFlight(8), nil).Once()
	m.bookings.On("Insert", ctx, nil, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()
	m.ledger.On("MarkProcessed", ctx, "pay_456", mock.AnythingOfType("string"), false).Return(nil).Once()
	m.producer.On("Publish", ctx, "payment_events", "pay_456", mock.Anything).Return(nil).Once()

	// Выполнение
	result, err := service.VerifyPayment(ctx, input)

	// Проверки
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Idempotent)
	assert.Equal(t, "pay_456", result.PaymentID)
	assert.Equal(t, 8, result.SeatsRemaining)
	assert.True(t, bookingref.Validate(result.BookingRef))

	m.users.AssertExpectations(t)
	m.bookings.AssertExpectations(t)
	m.flights.AssertExpectations(t)
	m.ledger.AssertExpectations(t)
	m.producer.AssertExpectations(t)
}

// Тест 2: Верификация платежа - неверная подпись, ничего не мутируется
func TestService_VerifyPayment_InvalidSignature(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	input := VerifyPaymentInput{
		OrderID:    "order_123",
		PaymentID:  "pay_456",
		Signature:  "forged",
		UserID:     7,
		FlightID:   4,
		Passengers: 1,
	}

	m.ledger.On("MarkFailed", ctx, "pay_456", "invalid signature").Return(nil).Once()

	result, err := service.VerifyPayment(ctx, input)

	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.Nil(t, result)

	m.ledger.AssertExpectations(t)
	m.users.AssertNotCalled(t, "FindByID")
	m.flights.AssertNotCalled(t, "ReserveSeats")
	m.bookings.AssertNotCalled(t, "Insert")
}

// Тест 3: Верификация платежа - повторный запрос, бронирование уже есть
func TestService_VerifyPayment_IdempotentReplay(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	input := VerifyPaymentInput{
		OrderID:    "order_123",
		PaymentID:  "pay_456",
		Signature:  signPayment("order_123", "pay_456"),
		UserID:     7,
		FlightID:   4,
		Passengers: 1,
	}

	existing := &domain.Booking{BookingRef: "FB1700000000000ABCDEF", PaymentID: "pay_456", UserID: 7}

	m.users.On("FindByID", ctx, int64(7)).Return(&domain.User{ID: 7}, nil).Once()
	m.bookings.On("FindByPaymentID", ctx, int64(7), "pay_456").Return(existing, nil).Once()

	result, err := service.VerifyPayment(ctx, input)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Idempotent)
	assert.Equal(t, existing.BookingRef, result.BookingRef)

	// Повтор не должен трогать места, леджер и Kafka
	m.flights.AssertNotCalled(t, "ReserveSeats")
	m.ledger.AssertNotCalled(t, "Insert")
	m.producer.AssertNotCalled(t, "Publish")
}

// Тест 4: Верификация платежа - мест не хватает
func TestService_VerifyPayment_SeatsUnavailable(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	input := VerifyPaymentInput{
		OrderID:    "order_123",
		PaymentID:  "pay_456",
		Signature:  signPayment("order_123", "pay_456"),
		UserID:     7,
		FlightID:   4,
		Passengers: 3,
	}

	m.users.On("FindByID", ctx, int64(7)).Return(&domain.User{ID: 7}, nil).Once()
	m.bookings.On("FindByPaymentID", ctx, int64(7), "pay_456").Return(nil, repository.ErrNotFound).Once()
	// Первое чтение видит 2 места, условный декремент на 3 не проходит
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(2), nil).Twice()
	m.ledger.On("Insert", ctx, mock.Anything).Return(nil).Once()
	m.txm.On("WithinTx", ctx, mock.Anything).Return(nil).Once()
	m.flights.On("ReserveSeats", ctx, nil, int64(4), 3).Return(nil, repository.ErrSeatsUnavailable).Once()
	m.ledger.On("MarkFailed", ctx, "pay_456", mock.AnythingOfType("string")).Return(nil).Once()
	m.producer.On("Publish", ctx, "payment_events", "pay_456", mock.Anything).Return(nil).Once()

	result, err := service.VerifyPayment(ctx, input)

	assert.Error(t, err)
	assert.Nil(t, result)

	var seatsErr *SeatsUnavailableError
	assert.ErrorAs(t, err, &seatsErr)
	assert.Equal(t, 2, seatsErr.Remaining)
	assert.Contains(t, err.Error(), "2 seat(s) available")

	m.bookings.AssertNotCalled(t, "Insert")
	m.ledger.AssertNotCalled(t, "MarkProcessed")
}

// Тест 5: Верификация платежа - рейс не найден
func TestService_VerifyPayment_FlightNotFound(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	input := VerifyPaymentInput{
		OrderID:    "order_123",
		PaymentID:  "pay_456",
		Signature:  signPayment("order_123", "pay_456"),
		UserID:     7,
		FlightID:   99,
		Passengers: 1,
	}

	m.users.On("FindByID", ctx, int64(7)).Return(&domain.User{ID: 7}, nil).Once()
	m.bookings.On("FindByPaymentID", ctx, int64(7), "pay_456").Return(nil, repository.ErrNotFound).Once()
	m.flights.On("GetByID", ctx, int64(99)).Return(nil, repository.ErrNotFound).Once()
	m.ledger.On("MarkFailed", ctx, "pay_456", "flight not found").Return(nil).Once()

	result, err := service.VerifyPayment(ctx, input)

	assert.ErrorIs(t, err, ErrFlightNotFound)
	assert.Nil(t, result)

	m.ledger.AssertExpectations(t)
	m.flights.AssertNotCalled(t, "ReserveSeats")
}

// Тест 6: Верификация платежа - пользователь не найден
func TestService_VerifyPayment_UserNotFound(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	input := VerifyPaymentInput{
		OrderID:    "order_123",
		PaymentID:  "pay_456",
		Signature:  signPayment("order_123", "pay_456"),
		UserID:     42,
		FlightID:   4,
		Passengers: 1,
	}

	m.users.On("FindByID", ctx, int64(42)).Return(nil, repository.ErrNotFound).Once()
	m.ledger.On("MarkFailed", ctx, "pay_456", "user not found").Return(nil).Once()

	result, err := service.VerifyPayment(ctx, input)

	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Nil(t, result)

	m.flights.AssertNotCalled(t, "GetByID")
}

// Тест 7: Верификация платежа - вставка бронирования падает, транзакция отменяется
func TestService_VerifyPayment_BookingInsertFails(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	input := VerifyPaymentInput{
		OrderID:    "order_123",
		PaymentID:  "pay_456",
		Signature:  signPayment("order_123", "pay_456"),
		UserID:     7,
		FlightID:   4,
		Passengers: 1,
	}

	insertErr := errors.New("insert failed")

	m.users.On("FindByID", ctx, int64(7)).Return(&domain.User{ID: 7}, nil).Once()
	m.bookings.On("FindByPaymentID", ctx, int64(7), "pay_456").Return(nil, repository.ErrNotFound).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(10), nil).Once()
	m.ledger.On("Insert", ctx, mock.Anything).Return(nil).Once()
	m.txm.On("WithinTx", ctx, mock.Anything).Return(nil).Once()
	m.flights.On("ReserveSeats", ctx, nil, int64(4), 1).Return(testFlight(9), nil).Once()
	m.bookings.On("Insert", ctx, nil, mock.Anything).Return(insertErr).Once()
	m.ledger.On("MarkFailed", ctx, "pay_456", insertErr.Error()).Return(nil).Once()
	m.producer.On("Publish", ctx, "payment_events", "pay_456", mock.Anything).Return(nil).Once()

	result, err := service.VerifyPayment(ctx, input)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, insertErr)

	// Платеж не должен считаться обработанным
	m.ledger.AssertNotCalled(t, "MarkProcessed")
}

// ============================ Конкурентная верификация ============================

// memFlightRepository - потокобезопасный инвентарь мест; условный декремент
// повторяет семантику ReserveSeats (seats_available >= count или отказ).
type memFlightRepository struct {
	mu     sync.Mutex
	flight domain.Flight
}

func (r *memFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	return nil, nil
}

func (r *memFlightRepository) Search(ctx context.Context, criteria repository.FlightSearch) ([]domain.Flight, error) {
	return nil, nil
}

func (r *memFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	return nil
}

func (r *memFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != r.flight.ID {
		return nil, repository.ErrNotFound
	}
	f := r.flight
	return &f, nil
}

func (r *memFlightRepository) ReserveSeats(ctx context.Context, tx pgx.Tx, flightID int64, count int) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if flightID != r.flight.ID {
		return nil, repository.ErrNotFound
	}
	if r.flight.SeatsAvailable < count {
		return nil, repository.ErrSeatsUnavailable
	}
	r.flight.SeatsAvailable -= count
	f := r.flight
	return &f, nil
}

func (r *memFlightRepository) seats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flight.SeatsAvailable
}

// memBookingRepository - потокобезопасное хранилище с уникальностью
// (user_id, payment_id), как в схеме bookings.
type memBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
}

func newMemBookingRepository() *memBookingRepository {
	return &memBookingRepository{bookings: make(map[string]*domain.Booking)}
}

func bookingKey(userID int64, paymentID string) string {
	return fmt.Sprintf("%d|%s", userID, paymentID)
}

func (r *memBookingRepository) Insert(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := bookingKey(booking.UserID, booking.PaymentID)
	if _, ok := r.bookings[key]; ok {
		return errors.New("duplicate booking for payment")
	}
	r.bookings[key] = booking
	return nil
}

func (r *memBookingRepository) FindByPaymentID(ctx context.Context, userID int64, paymentID string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[bookingKey(userID, paymentID)]; ok {
		return b, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return nil, nil
}

func (r *memBookingRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

type txPassthrough struct{}

func (txPassthrough) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func newConcurrencyService(seats int) (*Service, *memFlightRepository, *memBookingRepository) {
	flights := &memFlightRepository{flight: *testFlight(seats)}
	bookings := newMemBookingRepository()

	users := &MockUserRepository{}
	users.On("FindByID", mock.Anything, mock.Anything).Return(&domain.User{ID: 7, Username: "ivan"}, nil)

	ledger := &MockLedgerRepository{}
	ledger.On("Insert", mock.Anything, mock.Anything).Return(nil)
	ledger.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ledger.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	log := zap.NewNop()
	service := &Service{
		users:           users,
		flights:         flights,
		bookings:        bookings,
		ledger:          ledger,
		txm:             txPassthrough{},
		attempts:        &attemptLog{repo: ledger, log: log},
		log:             log,
		secrets:         Secrets{KeySecret: testKeySecret, WebhookSecret: testWebhookSecret},
		orphanThreshold: 5 * time.Minute,
		maxAttempts:     3,
	}
	return service, flights, bookings
}

func runConcurrentVerify(service *Service, paymentIDs []string) ([]*Result, []error) {
	results := make([]*Result, len(paymentIDs))
	errs := make([]error, len(paymentIDs))

	var wg sync.WaitGroup
	for i, paymentID := range paymentIDs {
		wg.Add(1)
		go func(slot int, paymentID string) {
			defer wg.Done()
			results[slot], errs[slot] = service.VerifyPayment(context.Background(), VerifyPaymentInput{
				OrderID:    "order_" + paymentID,
				PaymentID:  paymentID,
				Signature:  signPayment("order_"+paymentID, paymentID),
				UserID:     7,
				FlightID:   4,
				Passengers: 1,
			})
		}(i, paymentID)
	}
	wg.Wait()

	return results, errs
}

// Тест 10: два конкурентных платежа за последнее место - ровно один выигрывает
func TestService_VerifyPayment_ConcurrentLastSeat(t *testing.T) {
	service, flights, bookings := newConcurrencyService(1)

	results, errs := runConcurrentVerify(service, []string{"pay_a", "pay_b"})

	var wins, losses int
	for i := range errs {
		if errs[i] == nil {
			wins++
			assert.Equal(t, 0, results[i].SeatsRemaining)
			assert.True(t, bookingref.Validate(results[i].BookingRef))
			continue
		}
		losses++
		var seatsErr *SeatsUnavailableError
		assert.ErrorAs(t, errs[i], &seatsErr)
		assert.Equal(t, 0, seatsErr.Remaining)
		assert.Contains(t, errs[i].Error(), "0 seat(s) available")
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, flights.seats())
	assert.Equal(t, 1, bookings.count())
}

// Тест 11: N конкурентных платежей при K < N местах - овербукинг невозможен
func TestService_VerifyPayment_ConcurrentNoOversell(t *testing.T) {
	const (
		requests = 8
		seats    = 3
	)
	service, flights, bookings := newConcurrencyService(seats)

	paymentIDs := make([]string, requests)
	for i := range paymentIDs {
		paymentIDs[i] = fmt.Sprintf("pay_%d", i)
	}

	_, errs := runConcurrentVerify(service, paymentIDs)

	var wins int
	for i := range errs {
		if errs[i] == nil {
			wins++
			continue
		}
		var seatsErr *SeatsUnavailableError
		assert.ErrorAs(t, errs[i], &seatsErr)
	}

	// Сумма успешных декрементов никогда не превышает исходный остаток
	assert.Equal(t, seats, wins)
	assert.Equal(t, 0, flights.seats())
	assert.Equal(t, seats, bookings.count())
}

// ============================ Тесты для CreateOrder ============================

// Тест 8: Создание заказа - неположительная сумма
func TestService_CreateOrder_InvalidAmount(t *testing.T) {
	service, m := newTestService()
	gateway := &MockGateway{}
	service.gateway = gateway
	ctx := context.Background()

	order, err := service.CreateOrder(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Nil(t, order)

	order, err = service.CreateOrder(ctx, -500)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Nil(t, order)

	gateway.AssertNotCalled(t, "CreateOrder")
	_ = m
}

// Тест 9: Создание заказа - успешный сценарий
func TestService_CreateOrder_Success(t *testing.T) {
	service, _ := newTestService()
	gateway := &MockGateway{}
	service.gateway = gateway
	ctx := context.Background()

	expected := &razorpay.Order{ID: "order_123", Amount: 550000, Currency: "INR"}
	gateway.On("CreateOrder", ctx, int64(550000), "INR", mock.AnythingOfType("string")).Return(expected, nil).Once()

	order, err := service.CreateOrder(ctx, 550000)

	assert.NoError(t, err)
	assert.Equal(t, expected, order)

	gateway.AssertExpectations(t)
}
