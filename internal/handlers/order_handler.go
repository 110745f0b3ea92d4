package handlers

import (
	"log"

	"digistore/internal/middleware"
	"digistore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for the order/payment engine. The
// checkout routes accept either a bearer token or an inline clerk id; the
// read routes are bearer-only.
type OrderHandler struct {
	orderService *services.OrderService
	authService  *services.AuthService
	validate     *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *services.OrderService, authService *services.AuthService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		authService:  authService,
		validate:     validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/create", h.HandleCreateOrder)
	orderRoutes.Post("/verify", h.HandleVerifyPayment)
	orderRoutes.Post("/claim-free", h.HandleClaimFree)
	orderRoutes.Get("/", middleware.AuthRequired(h.authService), h.HandleListOrders)
	orderRoutes.Get("/:id", middleware.AuthRequired(h.authService), h.HandleGetOrder)
}

// HandleCreateOrder prices the cart and opens a gateway order. The body is
// optional for bearer users, whose cart is already server-side.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
				"error":   err.Error(),
			})
		}
	}

	result, err := h.orderService.CreateOrder(c.Get("Authorization"), req)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleVerifyPayment reconciles a payment confirmation.
func (h *OrderHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	var req services.PaymentVerification
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	if err := h.orderService.VerifyPayment(c.Get("Authorization"), req); err != nil {
		log.Printf("Payment verification failed for order %s: %v", req.OrderID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Payment verified successfully",
		"status":  "paid",
	})
}

// HandleClaimFree grants free products without payment.
func (h *OrderHandler) HandleClaimFree(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
				"error":   err.Error(),
			})
		}
	}

	result, err := h.orderService.ClaimFree(c.Get("Authorization"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":          "Free products claimed successfully",
		"products_claimed": result.ProductsClaimed,
		"product_ids":      result.ProductIDs,
	})
}

// HandleListOrders lists the bearer user's orders, newest first.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	orders, err := h.orderService.ListOrders(user.ID)
	if err != nil {
		log.Printf("Error listing orders for user %s: %v", user.ID, err)
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrder returns one of the bearer user's orders.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	order, err := h.orderService.GetOrder(user.ID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}
