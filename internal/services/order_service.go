package services

import (
	"errors"
	"fmt"
	"log"
	"math"

	"digistore/internal/models"
	"digistore/internal/repositories"
)

// Currency the store charges in. The gateway is always handed integer
// minor units (paise).
const defaultCurrency = "INR"

// PaymentGateway is the payment-provider collaborator: it creates gateway
// orders ahead of checkout and verifies confirmation signatures.
type PaymentGateway interface {
	CreateOrder(amountMinor int64, currency string) (string, error)
	VerifySignature(orderID, paymentID, signature string) error
	KeyID() string
}

// ActorResolver resolves a request's identity from the bearer header and
// the body-supplied clerk id. Implemented by AuthService.
type ActorResolver interface {
	ResolveActor(authHeader, clerkID string) (*Actor, error)
}

// EventPublisher publishes order lifecycle events. Implemented by the
// RabbitMQ client; nil disables publishing.
type EventPublisher interface {
	Publish(event string, payload interface{}) error
}

// OrderEvent is the payload published for order lifecycle transitions. A
// consumer of "order.paid" events can replay entitlement grants, which is
// the recovery path for a crash between the order-status write and the
// ledger write.
type OrderEvent struct {
	OrderID    string   `json:"order_id"`
	UserID     string   `json:"user_id"`
	ProductIDs []string `json:"product_ids,omitempty"`
	Total      float64  `json:"total,omitempty"`
}

// InlineCartItem is one line of a client-supplied cart. Federated users
// have no server-side cart, so they send their items inline; both
// "product_id" and the frontend's shorthand "id" are accepted.
type InlineCartItem struct {
	ProductID string `json:"product_id"`
	ID        string `json:"id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutRequest is the body of the dual-convention checkout routes.
type CheckoutRequest struct {
	ClerkID   string           `json:"clerk_id"`
	CartItems []InlineCartItem `json:"cart_items"`
}

// PaymentVerification is the client- or webhook-supplied confirmation.
type PaymentVerification struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	OrderID           string `json:"order_id" validate:"required"`
	ClerkID           string `json:"clerk_id"`
}

// CreateOrderResult is returned to the caller so it can open the payment
// widget. KeyID is the gateway's public key; the secret stays server-side.
type CreateOrderResult struct {
	OrderID         string  `json:"order_id"`
	RazorpayOrderID string  `json:"razorpay_order_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	KeyID           string  `json:"key_id"`
}

// ClaimFreeResult reports which products a free claim granted.
type ClaimFreeResult struct {
	ProductsClaimed int      `json:"products_claimed"`
	ProductIDs      []string `json:"product_ids"`
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	TotalUsers    int64   `json:"total_users"`
	TotalProducts int64   `json:"total_products"`
	TotalOrders   int64   `json:"total_orders"`
	PaidOrders    int64   `json:"paid_orders"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// OrderService is the order/payment engine: it turns a priced cart into a
// gateway order plus a local pending order, reconciles payment
// confirmations against the gateway's signature, and grants entitlements.
type OrderService struct {
	orders       repositories.OrderRepository
	products     repositories.ProductRepository
	carts        repositories.CartRepository
	entitlements repositories.EntitlementRepository
	users        repositories.UserRepository
	identity     ActorResolver
	gateway      PaymentGateway
	events       EventPublisher
	currency     string
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(
	orders repositories.OrderRepository,
	products repositories.ProductRepository,
	carts repositories.CartRepository,
	entitlements repositories.EntitlementRepository,
	users repositories.UserRepository,
	identity ActorResolver,
	gateway PaymentGateway,
	events EventPublisher,
) *OrderService {
	return &OrderService{
		orders:       orders,
		products:     products,
		carts:        carts,
		entitlements: entitlements,
		users:        users,
		identity:     identity,
		gateway:      gateway,
		events:       events,
		currency:     defaultCurrency,
	}
}

// resolveCheckout applies the dual calling convention: a bearer actor uses
// its persisted server-side cart, a federated actor must have supplied its
// items inline. Either way an empty cart stops the request before any
// product lookup happens.
func (s *OrderService) resolveCheckout(authHeader string, req CheckoutRequest) (*Actor, []models.CartItem, error) {
	actor, err := s.identity.ResolveActor(authHeader, req.ClerkID)
	if err != nil {
		return nil, nil, err
	}

	if actor.Bearer() {
		items, err := s.carts.GetItems(actor.User.ID)
		if err != nil {
			return nil, nil, err
		}
		if len(items) == 0 {
			return nil, nil, ErrEmptyCart
		}
		return actor, items, nil
	}

	if len(req.CartItems) == 0 {
		return nil, nil, ErrEmptyCart
	}
	items := make([]models.CartItem, 0, len(req.CartItems))
	for _, inline := range req.CartItems {
		productID := inline.ProductID
		if productID == "" {
			productID = inline.ID
		}
		quantity := inline.Quantity
		if quantity < 1 {
			quantity = 1
		}
		items = append(items, models.CartItem{
			UserID:    actor.User.ID,
			ProductID: productID,
			Quantity:  quantity,
		})
	}
	return actor, items, nil
}

// priceItems resolves each cart item against the catalog and snapshots
// name and price into order line items. Dangling product references are
// skipped, not errors; the caller decides what an empty result means.
func (s *OrderService) priceItems(items []models.CartItem) (models.OrderItems, float64, error) {
	var lineItems models.OrderItems
	var total float64
	for _, item := range items {
		product, err := s.products.GetByID(item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, 0, err
		}
		lineItems = append(lineItems, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
		})
		total += product.Price * float64(item.Quantity)
	}
	return lineItems, total, nil
}

// CreateOrder prices the cart, creates a gateway order for the integer
// minor-unit amount, and persists a local order in the "created" state.
// The returned amount always equals the persisted order's total: it is
// computed once, here.
func (s *OrderService) CreateOrder(authHeader string, req CheckoutRequest) (*CreateOrderResult, error) {
	actor, cartItems, err := s.resolveCheckout(authHeader, req)
	if err != nil {
		return nil, err
	}

	lineItems, total, err := s.priceItems(cartItems)
	if err != nil {
		return nil, err
	}
	if len(lineItems) == 0 {
		return nil, ErrNoValidItems
	}

	amountMinor := int64(math.Round(total * 100))
	gatewayOrderID, err := s.gateway.CreateOrder(amountMinor, s.currency)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	order := &models.Order{
		UserID:          actor.User.ID,
		Items:           lineItems,
		Total:           total,
		RazorpayOrderID: gatewayOrderID,
		Status:          models.OrderStatusCreated,
	}
	if err := s.orders.Create(order); err != nil {
		return nil, err
	}

	s.publish("order.created", OrderEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Total:   order.Total,
	})

	return &CreateOrderResult{
		OrderID:         order.ID,
		RazorpayOrderID: gatewayOrderID,
		Amount:          total,
		Currency:        s.currency,
		KeyID:           s.gateway.KeyID(),
	}, nil
}

// VerifyPayment reconciles a payment confirmation. The signature check
// runs first; a mismatch marks the order failed. A confirmation naming an
// order that does not exist is a plain not-found with no status write.
// Every fault after that point marks the order failed before the error
// propagates: the compensating write is reachable from every error exit.
func (s *OrderService) VerifyPayment(authHeader string, v PaymentVerification) error {
	if err := s.gateway.VerifySignature(v.RazorpayOrderID, v.RazorpayPaymentID, v.RazorpaySignature); err != nil {
		s.failOrder(v.OrderID)
		return fmt.Errorf("%w: %v", ErrPaymentVerificationFailed, err)
	}

	order, err := s.orders.GetByID(v.OrderID)
	if err != nil {
		return err
	}

	if err := s.settle(order, v, authHeader); err != nil {
		s.failOrder(order.ID)
		s.publish("order.payment_failed", OrderEvent{
			OrderID: order.ID,
			UserID:  order.UserID,
		})
		return fmt.Errorf("%w: %v", ErrPaymentVerificationFailed, err)
	}
	return nil
}

// settle performs the post-verification mutations: resolve the paying
// actor, flip the order to paid, union the line items into the ledger, and
// clear the server-side cart for bearer actors. The ledger union is
// idempotent, so a duplicate confirmation only logs.
func (s *OrderService) settle(order *models.Order, v PaymentVerification, authHeader string) error {
	actor, err := s.identity.ResolveActor(authHeader, v.ClerkID)
	if err != nil {
		return err
	}

	updated, err := s.orders.MarkPaid(order.ID, v.RazorpayPaymentID)
	if err != nil {
		return err
	}
	if !updated {
		log.Printf("order %s already settled, duplicate confirmation delivery", order.ID)
	}

	productIDs := order.Items.ProductIDs()
	if err := s.entitlements.GrantAll(actor.User.ID, productIDs); err != nil {
		return err
	}

	if actor.Bearer() {
		if err := s.carts.Clear(actor.User.ID); err != nil {
			return err
		}
	}

	s.publish("order.paid", OrderEvent{
		OrderID:    order.ID,
		UserID:     actor.User.ID,
		ProductIDs: productIDs,
		Total:      order.Total,
	})
	return nil
}

// ClaimFree grants every product in the cart without payment, provided all
// of them are free. One priced item rejects the whole claim; nothing is
// granted and the cart is left untouched. No order row is created.
func (s *OrderService) ClaimFree(authHeader string, req CheckoutRequest) (*ClaimFreeResult, error) {
	actor, cartItems, err := s.resolveCheckout(authHeader, req)
	if err != nil {
		return nil, err
	}

	var productIDs []string
	for _, item := range cartItems {
		product, err := s.products.GetByID(item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !product.IsFree() {
			return nil, ErrNotFree
		}
		productIDs = append(productIDs, product.ID)
	}
	if len(productIDs) == 0 {
		return nil, ErrNoValidItems
	}

	if err := s.entitlements.GrantAll(actor.User.ID, productIDs); err != nil {
		return nil, err
	}
	if actor.Bearer() {
		if err := s.carts.Clear(actor.User.ID); err != nil {
			return nil, err
		}
	}

	return &ClaimFreeResult{
		ProductsClaimed: len(productIDs),
		ProductIDs:      productIDs,
	}, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(userID string) ([]models.Order, error) {
	return s.orders.ListByUser(userID)
}

// GetOrder returns one order, owner-only.
func (s *OrderService) GetOrder(userID, orderID string) (*models.Order, error) {
	return s.orders.GetByUserAndID(userID, orderID)
}

// Stats aggregates the admin dashboard numbers.
func (s *OrderService) Stats() (*AdminStats, error) {
	users, err := s.users.CountByRole(models.RoleUser)
	if err != nil {
		return nil, err
	}
	products, err := s.products.Count()
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.Count()
	if err != nil {
		return nil, err
	}
	paid, err := s.orders.CountByStatus(models.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	revenue, err := s.orders.SumTotalByStatus(models.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	return &AdminStats{
		TotalUsers:    users,
		TotalProducts: products,
		TotalOrders:   orders,
		PaidOrders:    paid,
		TotalRevenue:  revenue,
	}, nil
}

// failOrder records the terminal "failed" state. Best effort: the
// verification error is what the caller needs to see, not a secondary
// write failure.
func (s *OrderService) failOrder(orderID string) {
	if err := s.orders.MarkFailed(orderID); err != nil {
		log.Printf("failed to mark order %s as failed: %v", orderID, err)
	}
}

func (s *OrderService) publish(event string, payload OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(event, payload); err != nil {
		log.Printf("warning: failed to publish %s for order %s: %v", event, payload.OrderID, err)
	}
}
