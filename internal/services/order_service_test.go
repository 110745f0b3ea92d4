package services_test

import (
	"errors"
	"fmt"
	"testing"

	"digistore/internal/models"
	"digistore/internal/repositories"
	"digistore/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderServiceMocks struct {
	orders       *MockOrderRepository
	products     *MockProductRepository
	carts        *MockCartRepository
	entitlements *MockEntitlementRepository
	users        *MockUserRepository
	identity     *MockActorResolver
	gateway      *MockPaymentGateway
	events       *MockEventPublisher
}

func newOrderService(withEvents bool) (*services.OrderService, *orderServiceMocks) {
	m := &orderServiceMocks{
		orders:       new(MockOrderRepository),
		products:     new(MockProductRepository),
		carts:        new(MockCartRepository),
		entitlements: new(MockEntitlementRepository),
		users:        new(MockUserRepository),
		identity:     new(MockActorResolver),
		gateway:      new(MockPaymentGateway),
		events:       new(MockEventPublisher),
	}
	var events services.EventPublisher
	if withEvents {
		events = m.events
	}
	svc := services.NewOrderService(
		m.orders, m.products, m.carts, m.entitlements, m.users,
		m.identity, m.gateway, events,
	)
	return svc, m
}

func bearerActor(userID string) *services.Actor {
	return &services.Actor{
		User:   &models.User{ID: userID, Role: models.RoleUser},
		Source: services.ActorSourceBearer,
	}
}

func federatedActor(userID string) *services.Actor {
	clerkID := "clerk_" + userID
	return &services.Actor{
		User:   &models.User{ID: userID, ClerkID: &clerkID},
		Source: services.ActorSourceFederated,
	}
}

func notFoundErr(what string) error {
	return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
}

func TestCreateOrder_TotalMatchesPersistedOrderAndMinorUnits(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.carts.On("GetItems", "user-1").Return([]models.CartItem{
		{UserID: "user-1", ProductID: "prod-a", Quantity: 2},
		{UserID: "user-1", ProductID: "prod-b", Quantity: 1},
	}, nil)
	m.products.On("GetByID", "prod-a").Return(&models.Product{ID: "prod-a", Name: "Product A", Price: 100}, nil)
	m.products.On("GetByID", "prod-b").Return(&models.Product{ID: "prod-b", Name: "Product B", Price: 50}, nil)

	// The gateway must receive the integer minor-unit amount.
	m.gateway.On("CreateOrder", int64(25000), "INR").Return("rzp_order_1", nil)
	m.gateway.On("KeyID").Return("rzp_test_key")

	var persisted *models.Order
	m.orders.On("Create", mock.AnythingOfType("*models.Order")).Run(func(args mock.Arguments) {
		persisted = args.Get(0).(*models.Order)
	}).Return(nil)

	result, err := svc.CreateOrder("Bearer tok", services.CheckoutRequest{})
	require.NoError(t, err)

	assert.Equal(t, 250.0, result.Amount)
	assert.Equal(t, "INR", result.Currency)
	assert.Equal(t, "rzp_order_1", result.RazorpayOrderID)
	assert.Equal(t, "rzp_test_key", result.KeyID)

	// Single source of truth: the returned amount equals the persisted total.
	require.NotNil(t, persisted)
	assert.Equal(t, result.Amount, persisted.Total)
	assert.Equal(t, models.OrderStatusCreated, persisted.Status)
	assert.Equal(t, "user-1", persisted.UserID)
	require.Len(t, persisted.Items, 2)
	assert.Equal(t, "Product A", persisted.Items[0].Name)
	assert.Equal(t, 100.0, persisted.Items[0].Price)
	assert.Equal(t, 2, persisted.Items[0].Quantity)

	m.gateway.AssertExpectations(t)
	m.orders.AssertExpectations(t)
}

func TestCreateOrder_EmptyCartRejectedBeforeProductResolution(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.carts.On("GetItems", "user-1").Return([]models.CartItem{}, nil)

	_, err := svc.CreateOrder("Bearer tok", services.CheckoutRequest{})
	assert.ErrorIs(t, err, services.ErrEmptyCart)

	m.products.AssertNotCalled(t, "GetByID", mock.Anything)
	m.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_DanglingReferencesSkippedNotErrored(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.carts.On("GetItems", "user-1").Return([]models.CartItem{
		{UserID: "user-1", ProductID: "gone", Quantity: 1},
		{UserID: "user-1", ProductID: "prod-b", Quantity: 3},
	}, nil)
	m.products.On("GetByID", "gone").Return(nil, notFoundErr("product with ID gone"))
	m.products.On("GetByID", "prod-b").Return(&models.Product{ID: "prod-b", Name: "Product B", Price: 50}, nil)

	m.gateway.On("CreateOrder", int64(15000), "INR").Return("rzp_order_2", nil)
	m.gateway.On("KeyID").Return("rzp_test_key")
	m.orders.On("Create", mock.AnythingOfType("*models.Order")).Return(nil)

	result, err := svc.CreateOrder("Bearer tok", services.CheckoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, 150.0, result.Amount)
}

func TestCreateOrder_AllDanglingIsNoValidItems(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.carts.On("GetItems", "user-1").Return([]models.CartItem{
		{UserID: "user-1", ProductID: "gone", Quantity: 1},
	}, nil)
	m.products.On("GetByID", "gone").Return(nil, notFoundErr("product with ID gone"))

	_, err := svc.CreateOrder("Bearer tok", services.CheckoutRequest{})
	assert.ErrorIs(t, err, services.ErrNoValidItems)
	m.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreateOrder_FederatedActorUsesInlineItems(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "", "clerk_42").Return(federatedActor("user-9"), nil)
	m.products.On("GetByID", "prod-a").Return(&models.Product{ID: "prod-a", Name: "Product A", Price: 100}, nil)
	m.gateway.On("CreateOrder", int64(10000), "INR").Return("rzp_order_3", nil)
	m.gateway.On("KeyID").Return("rzp_test_key")
	m.orders.On("Create", mock.AnythingOfType("*models.Order")).Return(nil)

	// The frontend sends "id" rather than "product_id" and omits quantity.
	result, err := svc.CreateOrder("", services.CheckoutRequest{
		ClerkID:   "clerk_42",
		CartItems: []services.InlineCartItem{{ID: "prod-a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Amount)

	// No server-side cart is ever consulted for federated actors.
	m.carts.AssertNotCalled(t, "GetItems", mock.Anything)
}

func TestCreateOrder_FederatedWithoutInlineItemsIsEmptyCart(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "", "clerk_42").Return(federatedActor("user-9"), nil)

	_, err := svc.CreateOrder("", services.CheckoutRequest{ClerkID: "clerk_42"})
	assert.ErrorIs(t, err, services.ErrEmptyCart)
}

func verification() services.PaymentVerification {
	return services.PaymentVerification{
		RazorpayOrderID:   "rzp_order_1",
		RazorpayPaymentID: "rzp_pay_1",
		RazorpaySignature: "sig",
		OrderID:           "order-1",
	}
}

func pendingOrder() *models.Order {
	return &models.Order{
		ID:     "order-1",
		UserID: "user-1",
		Items: models.OrderItems{
			{ProductID: "prod-a", Name: "Product A", Price: 100, Quantity: 2},
			{ProductID: "prod-b", Name: "Product B", Price: 50, Quantity: 1},
		},
		Total:           250,
		RazorpayOrderID: "rzp_order_1",
		Status:          models.OrderStatusCreated,
	}
}

func TestVerifyPayment_TamperedSignatureMarksOrderFailed(t *testing.T) {
	svc, m := newOrderService(false)

	m.gateway.On("VerifySignature", "rzp_order_1", "rzp_pay_1", "sig").
		Return(errors.New("signature mismatch"))
	m.orders.On("MarkFailed", "order-1").Return(nil)

	err := svc.VerifyPayment("Bearer tok", verification())
	assert.ErrorIs(t, err, services.ErrPaymentVerificationFailed)

	m.orders.AssertCalled(t, "MarkFailed", "order-1")
	m.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
	m.entitlements.AssertNotCalled(t, "GrantAll", mock.Anything, mock.Anything)
}

func TestVerifyPayment_UnknownOrderIsNotFoundWithoutStatusWrite(t *testing.T) {
	svc, m := newOrderService(false)

	m.gateway.On("VerifySignature", "rzp_order_1", "rzp_pay_1", "sig").Return(nil)
	m.orders.On("GetByID", "order-1").Return(nil, notFoundErr("order with ID order-1"))

	err := svc.VerifyPayment("Bearer tok", verification())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NotErrorIs(t, err, services.ErrPaymentVerificationFailed)

	m.orders.AssertNotCalled(t, "MarkFailed", mock.Anything)
	m.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestVerifyPayment_SuccessGrantsAndClearsBearerCart(t *testing.T) {
	svc, m := newOrderService(true)

	m.gateway.On("VerifySignature", "rzp_order_1", "rzp_pay_1", "sig").Return(nil)
	m.orders.On("GetByID", "order-1").Return(pendingOrder(), nil)
	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.orders.On("MarkPaid", "order-1", "rzp_pay_1").Return(true, nil)
	m.entitlements.On("GrantAll", "user-1", []string{"prod-a", "prod-b"}).Return(nil)
	m.carts.On("Clear", "user-1").Return(nil)
	m.events.On("Publish", "order.paid", mock.AnythingOfType("services.OrderEvent")).Return(nil)

	err := svc.VerifyPayment("Bearer tok", verification())
	require.NoError(t, err)

	m.orders.AssertExpectations(t)
	m.entitlements.AssertExpectations(t)
	m.carts.AssertExpectations(t)
	m.events.AssertExpectations(t)
}

func TestVerifyPayment_FederatedActorHasNoCartToClear(t *testing.T) {
	svc, m := newOrderService(false)

	v := verification()
	v.ClerkID = "clerk_42"

	m.gateway.On("VerifySignature", "rzp_order_1", "rzp_pay_1", "sig").Return(nil)
	m.orders.On("GetByID", "order-1").Return(pendingOrder(), nil)
	m.identity.On("ResolveActor", "", "clerk_42").Return(federatedActor("user-9"), nil)
	m.orders.On("MarkPaid", "order-1", "rzp_pay_1").Return(true, nil)
	m.entitlements.On("GrantAll", "user-9", []string{"prod-a", "prod-b"}).Return(nil)

	err := svc.VerifyPayment("", v)
	require.NoError(t, err)

	m.carts.AssertNotCalled(t, "Clear", mock.Anything)
}

func TestVerifyPayment_DuplicateDeliveryIsIdempotent(t *testing.T) {
	svc, m := newOrderService(false)

	m.gateway.On("VerifySignature", "rzp_order_1", "rzp_pay_1", "sig").Return(nil)
	m.orders.On("GetByID", "order-1").Return(pendingOrder(), nil)
	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	// CAS reports the order was already settled.
	m.orders.On("MarkPaid", "order-1", "rzp_pay_1").Return(false, nil)
	m.entitlements.On("GrantAll", "user-1", []string{"prod-a", "prod-b"}).Return(nil)
	m.carts.On("Clear", "user-1").Return(nil)

	err := svc.VerifyPayment("Bearer tok", verification())
	assert.NoError(t, err)

	// The ledger union still runs; it is a set union, so replays converge.
	m.entitlements.AssertExpectations(t)
}

func TestVerifyPayment_DownstreamFaultMarksOrderFailed(t *testing.T) {
	svc, m := newOrderService(false)

	m.gateway.On("VerifySignature", "rzp_order_1", "rzp_pay_1", "sig").Return(nil)
	m.orders.On("GetByID", "order-1").Return(pendingOrder(), nil)
	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.orders.On("MarkPaid", "order-1", "rzp_pay_1").Return(true, nil)
	m.entitlements.On("GrantAll", "user-1", []string{"prod-a", "prod-b"}).
		Return(errors.New("ledger write failed"))
	m.orders.On("MarkFailed", "order-1").Return(nil)

	err := svc.VerifyPayment("Bearer tok", verification())
	assert.ErrorIs(t, err, services.ErrPaymentVerificationFailed)
	m.orders.AssertCalled(t, "MarkFailed", "order-1")
}

func TestVerifyPayment_UnresolvableActorMarksOrderFailed(t *testing.T) {
	svc, m := newOrderService(false)

	m.gateway.On("VerifySignature", "rzp_order_1", "rzp_pay_1", "sig").Return(nil)
	m.orders.On("GetByID", "order-1").Return(pendingOrder(), nil)
	m.identity.On("ResolveActor", "", "").Return(nil, services.ErrAuthRequired)
	m.orders.On("MarkFailed", "order-1").Return(nil)

	err := svc.VerifyPayment("", verification())
	assert.ErrorIs(t, err, services.ErrPaymentVerificationFailed)
	m.orders.AssertCalled(t, "MarkFailed", "order-1")
}

func TestClaimFree_RejectsWholeClaimOnPricedItem(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.carts.On("GetItems", "user-1").Return([]models.CartItem{
		{UserID: "user-1", ProductID: "free-a", Quantity: 1},
		{UserID: "user-1", ProductID: "paid-b", Quantity: 1},
	}, nil)
	m.products.On("GetByID", "free-a").Return(&models.Product{ID: "free-a", Price: 0}, nil)
	m.products.On("GetByID", "paid-b").Return(&models.Product{ID: "paid-b", Price: 50}, nil)

	_, err := svc.ClaimFree("Bearer tok", services.CheckoutRequest{})
	assert.ErrorIs(t, err, services.ErrNotFree)

	// Nothing granted, cart untouched.
	m.entitlements.AssertNotCalled(t, "GrantAll", mock.Anything, mock.Anything)
	m.carts.AssertNotCalled(t, "Clear", mock.Anything)
}

func TestClaimFree_GrantsAndClearsCart(t *testing.T) {
	svc, m := newOrderService(false)

	m.identity.On("ResolveActor", "Bearer tok", "").Return(bearerActor("user-1"), nil)
	m.carts.On("GetItems", "user-1").Return([]models.CartItem{
		{UserID: "user-1", ProductID: "free-a", Quantity: 1},
		{UserID: "user-1", ProductID: "gone", Quantity: 1},
	}, nil)
	m.products.On("GetByID", "free-a").Return(&models.Product{ID: "free-a", Price: 0}, nil)
	m.products.On("GetByID", "gone").Return(nil, notFoundErr("product with ID gone"))
	m.entitlements.On("GrantAll", "user-1", []string{"free-a"}).Return(nil)
	m.carts.On("Clear", "user-1").Return(nil)

	result, err := svc.ClaimFree("Bearer tok", services.CheckoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProductsClaimed)
	assert.Equal(t, []string{"free-a"}, result.ProductIDs)

	// No order row is created for free claims.
	m.orders.AssertNotCalled(t, "Create", mock.Anything)
	m.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	svc, m := newOrderService(false)

	m.users.On("CountByRole", models.RoleUser).Return(int64(10), nil)
	m.products.On("Count").Return(int64(4), nil)
	m.orders.On("Count").Return(int64(7), nil)
	m.orders.On("CountByStatus", models.OrderStatusPaid).Return(int64(5), nil)
	m.orders.On("SumTotalByStatus", models.OrderStatusPaid).Return(1250.0, nil)

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalUsers)
	assert.Equal(t, int64(4), stats.TotalProducts)
	assert.Equal(t, int64(7), stats.TotalOrders)
	assert.Equal(t, int64(5), stats.PaidOrders)
	assert.Equal(t, 1250.0, stats.TotalRevenue)
}
