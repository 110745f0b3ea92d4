package handlers

import (
	"encoding/json"
	"log"
	"mime/multipart"
	"strconv"
	"strings"

	"digistore/internal/middleware"
	"digistore/internal/models"
	"digistore/internal/services"
	"digistore/pkg/cloudinary"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

// AdminHandler handles the admin surface: blob uploads, product CRUD with
// attached files, dashboard stats, demo-course distribution, and the
// one-time admin seed.
type AdminHandler struct {
	catalogService *services.CatalogService
	orderService   *services.OrderService
	authService    *services.AuthService
	blobs          *cloudinary.Client
	validate       *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(catalogService *services.CatalogService, orderService *services.OrderService, authService *services.AuthService, blobs *cloudinary.Client) *AdminHandler {
	return &AdminHandler{
		catalogService: catalogService,
		orderService:   orderService,
		authService:    authService,
		blobs:          blobs,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the admin routes with the Fiber app. Everything
// except the seed endpoint requires an admin bearer token.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	adminRoutes := router.Group("/admin")
	adminRoutes.Post("/seed", h.HandleSeed)

	protected := adminRoutes.Group("", middleware.AuthRequired(h.authService), middleware.AdminRequired())
	protected.Post("/upload", h.HandleUpload)
	protected.Post("/products", h.HandleCreateProduct)
	protected.Put("/products/:id", h.HandleUpdateProduct)
	protected.Delete("/products/:id", h.HandleDeleteProduct)
	protected.Get("/stats", h.HandleStats)
	protected.Post("/distribute-demo-course", h.HandleDistributeDemo)
}

// HandleUpload pushes a file to the blob host and returns its public URL.
func (h *AdminHandler) HandleUpload(c *fiber.Ctx) error {
	if h.blobs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Blob host is not configured",
		})
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "file is required",
		})
	}

	result, err := h.uploadFile(fileHeader, "ecommerce", "auto")
	if err != nil {
		log.Printf("Upload failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Upload failed",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"url":       result.SecureURL,
		"public_id": result.PublicID,
	})
}

// HandleCreateProduct creates a product from a multipart form, uploading
// the preview image and deliverable when attached.
func (h *AdminHandler) HandleCreateProduct(c *fiber.Ctx) error {
	price, err := strconv.ParseFloat(c.FormValue("price", "0"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "price must be a number",
		})
	}

	product := &models.Product{
		Name:          c.FormValue("name"),
		Description:   c.FormValue("description"),
		Price:         price,
		Category:      c.FormValue("category"),
		VideoURL:      c.FormValue("video_url"),
		Features:      parseFeatures(c.FormValue("features")),
		VideoChapters: parseChapters(c.FormValue("video_chapters")),
	}

	if err := h.attachUploads(c, product); err != nil {
		log.Printf("Error uploading product files: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to upload product files",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(product); err != nil {
		return respondValidationError(c, err)
	}
	if err := h.catalogService.Create(product); err != nil {
		log.Printf("Error creating product: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct applies a partial multipart update to a product.
func (h *AdminHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	product, err := h.catalogService.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	if v := c.FormValue("name"); v != "" {
		product.Name = v
	}
	if v := c.FormValue("description"); v != "" {
		product.Description = v
	}
	if v := c.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "price must be a number",
			})
		}
		product.Price = price
	}
	if v := c.FormValue("category"); v != "" {
		product.Category = v
	}
	if v := c.FormValue("features"); v != "" {
		product.Features = parseFeatures(v)
	}
	if v := c.FormValue("video_url"); v != "" {
		product.VideoURL = v
	}
	if v := c.FormValue("video_chapters"); v != "" {
		product.VideoChapters = parseChapters(v)
	}

	if err := h.attachUploads(c, product); err != nil {
		log.Printf("Error uploading product files: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to upload product files",
			"error":   err.Error(),
		})
	}

	if err := h.catalogService.Update(product); err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes a product from the catalog.
func (h *AdminHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.catalogService.Delete(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

// HandleStats returns the dashboard summary.
func (h *AdminHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.orderService.Stats()
	if err != nil {
		log.Printf("Error computing admin stats: %v", err)
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// HandleDistributeDemo grants the demo course to every user.
func (h *AdminHandler) HandleDistributeDemo(c *fiber.Ctx) error {
	updated, err := h.catalogService.DistributeToAllUsers(services.DemoProductID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":       "Demo course distributed",
		"users_updated": updated,
	})
}

// HandleSeed creates the admin account once. Deliberately unauthenticated:
// it is a no-op when the admin already exists.
func (h *AdminHandler) HandleSeed(c *fiber.Ctx) error {
	email := viper.GetString("ADMIN_EMAIL")
	created, err := h.authService.SeedAdmin(email, viper.GetString("ADMIN_PASSWORD"), "Admin")
	if err != nil {
		log.Printf("Error seeding admin: %v", err)
		return respondError(c, err)
	}
	if !created {
		return c.JSON(fiber.Map{"message": "Admin already exists"})
	}
	return c.JSON(fiber.Map{
		"message": "Admin user created",
		"email":   email,
	})
}

// attachUploads uploads the optional "image" and "download_file" parts and
// stores the resulting URLs on the product.
func (h *AdminHandler) attachUploads(c *fiber.Ctx, product *models.Product) error {
	if h.blobs == nil {
		return nil
	}
	if fileHeader, err := c.FormFile("image"); err == nil {
		result, err := h.uploadFile(fileHeader, "ecommerce/products", "image")
		if err != nil {
			return err
		}
		product.ImageURL = result.SecureURL
	}
	if fileHeader, err := c.FormFile("download_file"); err == nil {
		result, err := h.uploadFile(fileHeader, "ecommerce/downloads", "raw")
		if err != nil {
			return err
		}
		product.DownloadLink = result.SecureURL
	}
	return nil
}

func (h *AdminHandler) uploadFile(fileHeader *multipart.FileHeader, folder, resourceType string) (*cloudinary.UploadResult, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return h.blobs.Upload(file, fileHeader.Filename, folder, resourceType)
}

func parseFeatures(raw string) models.StringList {
	features := models.StringList{}
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	return features
}

func parseChapters(raw string) models.VideoChapters {
	chapters := models.VideoChapters{}
	if raw == "" {
		return chapters
	}
	if err := json.Unmarshal([]byte(raw), &chapters); err != nil {
		log.Printf("Ignoring malformed video_chapters: %v", err)
		return models.VideoChapters{}
	}
	return chapters
}
