package handlers

import (
	"log"

	"digistore/internal/middleware"
	"digistore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the server-side cart. All routes
// require a bearer token; federated users keep their cart client-side.
type CartHandler struct {
	cartService *services.CartService
	authService *services.AuthService
	validate    *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(cartService *services.CartService, authService *services.AuthService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart", middleware.AuthRequired(h.authService))
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/add", h.HandleAddToCart)
	cartRoutes.Delete("/remove/:product_id", h.HandleRemoveFromCart)
	cartRoutes.Delete("/clear", h.HandleClearCart)
}

// HandleGetCart returns the cart with product details resolved.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	entries, err := h.cartService.Get(user.ID)
	if err != nil {
		log.Printf("Error getting cart for user %s: %v", user.ID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": entries})
}

// AddToCartRequest represents one product to put in the cart.
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// HandleAddToCart adds a product to the cart. Re-adding a product already
// present is rejected, not merged.
func (h *CartHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req AddToCartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	user := middleware.CurrentUser(c)
	if err := h.cartService.Add(user.ID, req.ProductID, req.Quantity); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item added to cart"})
}

// HandleRemoveFromCart removes one product from the cart.
func (h *CartHandler) HandleRemoveFromCart(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if err := h.cartService.Remove(user.ID, c.Params("product_id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item removed from cart"})
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if err := h.cartService.Clear(user.ID); err != nil {
		log.Printf("Error clearing cart for user %s: %v", user.ID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Cart cleared"})
}
