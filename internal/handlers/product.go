package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/logging"
	"github.com/lisakugler/grocery-store/internal/models"
	"github.com/lisakugler/grocery-store/internal/mykafka"
	"github.com/lisakugler/grocery-store/internal/session"
	"github.com/lisakugler/grocery-store/internal/upload"
)

type ProductHandler struct {
	DB       *gorm.DB
	Sessions *session.Manager
	Uploads  *upload.Store
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
}

func (h *ProductHandler) NewProductPage(c echo.Context) error {
	ctx := c.Request().Context()

	var categories []models.Category
	if err := h.DB.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load categories")
	}

	data, err := formData(c, h.Sessions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}
	data["Title"] = "New product"
	data["Action"] = "/grocerystore/newproduct"
	data["Categories"] = categories
	return c.Render(http.StatusOK, "product_form.html", data)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")
	sess := session.FromEcho(c)

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		l.Warn("product_create_error", "status", 400, "reason", "name is required")
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	categoryName := c.FormValue("category")
	if err := h.categoryExists(c, categoryName); err != nil {
		return err
	}

	// disallowed extensions are skipped silently, the product is created
	// without an image
	var imageFileName string
	if fh, err := c.FormFile("image"); err == nil {
		stored, err := h.Uploads.Save(fh)
		if err != nil {
			l.Error("product_create_error", "status", 500, "reason", "cannot store image", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot store image")
		}
		imageFileName = stored
	}

	product := models.Product{
		Name:          name,
		Description:   c.FormValue("description"),
		Price:         c.FormValue("price"),
		ImageFileName: imageFileName,
		CategoryName:  categoryName,
		UserID:        sess.UserID,
	}
	if err := h.DB.WithContext(ctx).Create(&product).Error; err != nil {
		l.Error("product_create_error", "status", 500, "reason", "cannot add product to db", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot add product to db")
	}

	indexProduct(c, h.ES, h.ESIndex, &product)
	publish(c, h.Producer, product.Name, map[string]any{
		"type":   "product_created",
		"name":   product.Name,
		"userID": sess.UserID,
	})

	l.Info("product_create_success", "name", product.Name)
	return c.Redirect(http.StatusFound, "/grocerystore/"+categoryName+"/products")
}

func (h *ProductHandler) EditProductPage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.edit_page")
	sess := session.FromEcho(c)

	product, err := h.loadProductByName(c, c.Param("product"))
	if err != nil {
		return err
	}
	if product.UserID != sess.UserID {
		l.Warn("product_edit_refused", "name", product.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to edit the product!")
	}

	var categories []models.Category
	if err := h.DB.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load categories")
	}

	data, err := formData(c, h.Sessions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}
	data["Title"] = "Edit " + product.Name
	data["Action"] = "/grocerystore/editproduct/" + product.Name
	data["Product"] = product
	data["Categories"] = categories
	return c.Render(http.StatusOK, "product_form.html", data)
}

// EditProduct applies a partial update: blank submitted fields keep the
// stored value, and the image only changes when a new upload with an
// accepted extension is attached.
func (h *ProductHandler) EditProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.edit")
	sess := session.FromEcho(c)

	product, err := h.loadProductByName(c, c.Param("product"))
	if err != nil {
		return err
	}
	if product.UserID != sess.UserID {
		l.Warn("product_edit_refused", "name", product.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to edit the product!")
	}

	oldName := product.Name

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(c.FormValue("name")); name != "" && name != product.Name {
		updates["name"] = name
		product.Name = name
	}
	if description := c.FormValue("description"); description != "" {
		updates["description"] = description
		product.Description = description
	}
	if price := c.FormValue("price"); price != "" {
		updates["price"] = price
		product.Price = price
	}
	if categoryName := c.FormValue("category"); categoryName != "" {
		if err := h.categoryExists(c, categoryName); err != nil {
			return err
		}
		updates["category_name"] = categoryName
		product.CategoryName = categoryName
	}

	if fh, err := c.FormFile("image"); err == nil {
		stored, err := h.Uploads.Save(fh)
		if err != nil {
			l.Error("product_edit_error", "status", 500, "reason", "cannot store image", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot store image")
		}
		if stored != "" {
			updates["image_file_name"] = stored
			product.ImageFileName = stored
		}
	}

	if len(updates) > 0 {
		if err := h.DB.WithContext(ctx).Model(&models.Product{}).
			Where("name = ?", oldName).Updates(updates).Error; err != nil {
			l.Error("product_edit_error", "status", 500, "reason", "cannot update product", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update product")
		}
	}

	if product.Name != oldName {
		unindexProduct(c, h.ES, h.ESIndex, oldName)
	}
	indexProduct(c, h.ES, h.ESIndex, product)
	publish(c, h.Producer, product.Name, map[string]any{
		"type":   "product_updated",
		"name":   product.Name,
		"userID": sess.UserID,
	})

	l.Info("product_edit_success", "name", product.Name)
	return c.Redirect(http.StatusFound, "/grocerystore/"+product.CategoryName+"/products")
}

func (h *ProductHandler) DeleteProductPage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_page")
	sess := session.FromEcho(c)

	product, err := h.loadProductInCategory(c)
	if err != nil {
		return err
	}
	if product.UserID != sess.UserID {
		l.Warn("product_delete_refused", "name", product.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to delete the product!")
	}

	data, err := formData(c, h.Sessions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}
	data["Name"] = product.Name
	data["Warning"] = "The product and its image will be deleted."
	data["Action"] = "/grocerystore/" + product.CategoryName + "/" + product.Name + "/delete"
	return c.Render(http.StatusOK, "confirm_delete.html", data)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")
	sess := session.FromEcho(c)

	product, err := h.loadProductInCategory(c)
	if err != nil {
		return err
	}
	if product.UserID != sess.UserID {
		l.Warn("product_delete_refused", "name", product.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to delete the product!")
	}

	if err := h.DB.WithContext(ctx).Delete(&models.Product{}, "name = ?", product.Name).Error; err != nil {
		l.Error("product_delete_error", "status", 500, "reason", "cannot delete product from db", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete product from db")
	}

	if err := h.Uploads.Remove(product.ImageFileName); err != nil {
		l.Error("product_delete_image_error", "name", product.Name, "error", err)
	}
	unindexProduct(c, h.ES, h.ESIndex, product.Name)
	publish(c, h.Producer, product.Name, map[string]any{
		"type":   "product_deleted",
		"name":   product.Name,
		"userID": sess.UserID,
	})

	l.Info("product_delete_success", "name", product.Name)
	return c.Redirect(http.StatusFound, "/grocerystore/"+product.CategoryName+"/products")
}

func (h *ProductHandler) categoryExists(c echo.Context, name string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.category_check")

	if name == "" {
		l.Warn("product_category_error", "status", 400, "reason", "category is required")
		return echo.NewHTTPError(http.StatusBadRequest, "category is required")
	}

	var category models.Category
	if err := h.DB.WithContext(ctx).First(&category, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("product_category_error", "status", 400, "reason", "category does not exist", "name", name)
			return echo.NewHTTPError(http.StatusBadRequest, "category does not exist")
		}
		l.Error("product_category_error", "status", 500, "reason", "cannot load category", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load category")
	}
	return nil
}

func (h *ProductHandler) loadProductByName(c echo.Context, name string) (*models.Product, error) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.load")

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("product_not_found", "status", 404, "name", name)
			return nil, echo.NewHTTPError(http.StatusNotFound, "product does not exist")
		}
		l.Error("product_load_error", "status", 500, "reason", "cannot load product", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load product")
	}
	return &product, nil
}

func (h *ProductHandler) loadProductInCategory(c echo.Context) (*models.Product, error) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.load")

	name := c.Param("product")
	categoryName := c.Param("category")
	var product models.Product
	err := h.DB.WithContext(ctx).
		Where("name = ? AND category_name = ?", name, categoryName).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("product_not_found", "status", 404, "name", name, "category", categoryName)
			return nil, echo.NewHTTPError(http.StatusNotFound, "product does not exist")
		}
		l.Error("product_load_error", "status", 500, "reason", "cannot load product", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load product")
	}
	return &product, nil
}
