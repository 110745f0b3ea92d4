package handlers

import (
	"log"

	"digistore/internal/middleware"
	"digistore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication and identity sync.
type AuthHandler struct {
	authService    *services.AuthService
	catalogService *services.CatalogService
	validate       *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, catalogService *services.CatalogService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		catalogService: catalogService,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/clerk-sync", h.HandleClerkSync)
	authRoutes.Get("/me", middleware.AuthRequired(h.authService), h.HandleMe)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

// HandleRegister creates a local-password account.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	token, user, err := h.authService.Register(req.Email, req.Password, req.Name)
	if err != nil {
		log.Printf("Error registering user %s: %v", req.Email, err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates and issues a bearer token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	token, user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// ClerkSyncRequest represents a federated identity sync.
type ClerkSyncRequest struct {
	ClerkID         string `json:"clerk_id" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required"`
	ProfileImageURL string `json:"profile_image_url"`
}

// HandleClerkSync creates or refreshes a federated user record.
func (h *AuthHandler) HandleClerkSync(c *fiber.Ctx) error {
	var req ClerkSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationError(c, err)
	}

	user, created, err := h.authService.ClerkSync(req.ClerkID, req.Email, req.Name, req.ProfileImageURL)
	if err != nil {
		log.Printf("Error syncing clerk user %s: %v", req.ClerkID, err)
		return respondError(c, err)
	}

	status := "updated"
	if created {
		status = "created"
	}
	return c.JSON(fiber.Map{
		"status": status,
		"user": fiber.Map{
			"id":       user.ID,
			"email":    user.Email,
			"name":     user.Name,
			"clerk_id": user.ClerkID,
		},
	})
}

// HandleMe returns the authenticated user with its entitlement set.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	purchased, err := h.catalogService.ListPurchased(user.ID)
	if err != nil {
		log.Printf("Error listing entitlements for user %s: %v", user.ID, err)
		return respondError(c, err)
	}
	productIDs := make([]string, 0, len(purchased))
	for _, p := range purchased {
		productIDs = append(productIDs, p.ID)
	}

	return c.JSON(fiber.Map{
		"id":                 user.ID,
		"email":              user.Email,
		"name":               user.Name,
		"role":               user.Role,
		"purchased_products": productIDs,
	})
}
