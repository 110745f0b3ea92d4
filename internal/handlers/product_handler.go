package handlers

import (
	"fmt"
	"log"
	"strings"

	"digistore/internal/middleware"
	"digistore/internal/services"
	"digistore/pkg/cloudinary"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog, entitlement reads,
// and deliverable downloads.
type ProductHandler struct {
	catalogService *services.CatalogService
	authService    *services.AuthService
	blobs          *cloudinary.Client // nil: downloads redirect to the raw link
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalogService *services.CatalogService, authService *services.AuthService, blobs *cloudinary.Client) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		authService:    authService,
		blobs:          blobs,
	}
}

// RegisterRoutes registers the catalog routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/products", h.HandleGetProducts)
	router.Get("/products/:id", h.HandleGetProductByID)
	router.Get("/purchased-products", middleware.AuthRequired(h.authService), h.HandleGetPurchased)
	router.Get("/clerk/purchased-products/:clerk_id", h.HandleGetClerkPurchased)
	router.Get("/download/:product_id", h.HandleDownload)
}

// HandleGetProducts lists the catalog, optionally filtered by category.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.catalogService.List(c.Query("category"))
	if err != nil {
		log.Printf("Error getting products: %v", err)
		return respondError(c, err)
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.catalogService.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

// HandleGetPurchased lists the products the bearer user is entitled to.
func (h *ProductHandler) HandleGetPurchased(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	products, err := h.catalogService.ListPurchased(user.ID)
	if err != nil {
		log.Printf("Error getting purchased products for user %s: %v", user.ID, err)
		return respondError(c, err)
	}
	return c.JSON(products)
}

// HandleGetClerkPurchased lists purchased products for a federated user.
// An unknown clerk id yields an empty list.
func (h *ProductHandler) HandleGetClerkPurchased(c *fiber.Ctx) error {
	products, err := h.catalogService.ListPurchasedByClerkID(c.Params("clerk_id"))
	if err != nil {
		log.Printf("Error getting purchased products for clerk %s: %v", c.Params("clerk_id"), err)
		return respondError(c, err)
	}
	return c.JSON(products)
}

// HandleDownload serves a product's deliverable. With a blob client the
// file is fetched through a signed URL and streamed back as an attachment;
// without one the client is redirected to the stored link.
func (h *ProductHandler) HandleDownload(c *fiber.Ctx) error {
	product, err := h.catalogService.Get(c.Params("product_id"))
	if err != nil {
		return respondError(c, err)
	}
	if product.DownloadLink == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Download link not available",
		})
	}

	if h.blobs == nil {
		return c.Redirect(product.DownloadLink, fiber.StatusFound)
	}

	body, length, contentType, err := h.blobs.Fetch(h.blobs.SignedURL(product.DownloadLink))
	if err != nil {
		log.Printf("Error fetching deliverable for product %s: %v", product.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Unable to access file",
		})
	}

	filename := strings.ReplaceAll(product.Name, " ", "_")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if contentType != "" {
		c.Set("Content-Type", contentType)
	}
	if length > 0 {
		return c.SendStream(body, int(length))
	}
	return c.SendStream(body)
}
