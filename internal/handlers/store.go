package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/logging"
	"github.com/lisakugler/grocery-store/internal/models"
	"github.com/lisakugler/grocery-store/internal/session"
)

// StoreHandler renders the read-only HTML pages.
type StoreHandler struct {
	DB             *gorm.DB
	Sessions       *session.Manager
	GoogleClientID string
}

func (h *StoreHandler) Index(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "store.index")

	var categories []models.Category
	if err := h.DB.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		l.Error("store_index_error", "status", 500, "reason", "cannot load categories", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load categories")
	}

	var products []models.Product
	if err := h.DB.WithContext(ctx).Order("category_name ASC").Find(&products).Error; err != nil {
		l.Error("store_index_error", "status", 500, "reason", "cannot load products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}

	data := pageData(c, h.Sessions)
	data["Categories"] = categories
	data["Products"] = products
	return c.Render(http.StatusOK, "store.html", data)
}

func (h *StoreHandler) CategoryPage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "store.category")

	name := c.Param("category")
	var category models.Category
	if err := h.DB.WithContext(ctx).First(&category, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("category_not_found", "status", 404, "name", name)
			return echo.NewHTTPError(http.StatusNotFound, "category does not exist")
		}
		l.Error("store_category_error", "status", 500, "reason", "cannot load category", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load category")
	}

	var products []models.Product
	if err := h.DB.WithContext(ctx).Where("category_name = ?", category.Name).Find(&products).Error; err != nil {
		l.Error("store_category_error", "status", 500, "reason", "cannot load products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}

	var owner models.User
	if err := h.DB.WithContext(ctx).First(&owner, category.UserID).Error; err != nil {
		l.Error("store_category_error", "status", 500, "reason", "cannot load owner", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load owner")
	}

	data := pageData(c, h.Sessions)
	data["Category"] = category
	data["Products"] = products
	data["CreatedBy"] = owner.Name
	return c.Render(http.StatusOK, "category.html", data)
}

func (h *StoreHandler) ProductPage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "store.product")

	categoryName := c.Param("category")
	productName := c.Param("product")

	var product models.Product
	err := h.DB.WithContext(ctx).
		Where("name = ? AND category_name = ?", productName, categoryName).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("product_not_found", "status", 404, "name", productName, "category", categoryName)
			return echo.NewHTTPError(http.StatusNotFound, "product does not exist")
		}
		l.Error("store_product_error", "status", 500, "reason", "cannot load product", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load product")
	}

	var category models.Category
	if err := h.DB.WithContext(ctx).First(&category, "name = ?", categoryName).Error; err != nil {
		l.Error("store_product_error", "status", 500, "reason", "cannot load category", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load category")
	}

	var owner models.User
	if err := h.DB.WithContext(ctx).First(&owner, product.UserID).Error; err != nil {
		l.Error("store_product_error", "status", 500, "reason", "cannot load owner", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load owner")
	}

	data := pageData(c, h.Sessions)
	data["Product"] = product
	data["Category"] = category
	data["CreatedBy"] = owner.Name
	return c.Render(http.StatusOK, "product.html", data)
}

// LoginPage issues the anti-forgery state token the sign-in callbacks must
// echo back, and hands over the post-login redirect target.
func (h *StoreHandler) LoginPage(c echo.Context) error {
	ctx := c.Request().Context()

	data, err := formData(c, h.Sessions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}

	redirectTo := "/grocerystore"
	if sess := session.FromEcho(c); sess != nil {
		if target, err := h.Sessions.PopRedirect(ctx, sess); err == nil && target != "" {
			redirectTo = target
		}
	}

	data["GoogleClientID"] = h.GoogleClientID
	data["RedirectTo"] = redirectTo
	return c.Render(http.StatusOK, "login.html", data)
}
