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

type CategoryHandler struct {
	DB       *gorm.DB
	Sessions *session.Manager
	Uploads  *upload.Store
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
}

func (h *CategoryHandler) NewCategoryPage(c echo.Context) error {
	data, err := formData(c, h.Sessions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}
	data["Title"] = "New category"
	data["Action"] = "/grocerystore/newcategory"
	return c.Render(http.StatusOK, "category_form.html", data)
}

func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.create")
	sess := session.FromEcho(c)

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		l.Warn("category_create_error", "status", 400, "reason", "name is required")
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	category := models.Category{
		Name:        name,
		Description: c.FormValue("description"),
		UserID:      sess.UserID,
	}
	if err := h.DB.WithContext(ctx).Create(&category).Error; err != nil {
		l.Error("category_create_error", "status", 500, "reason", "cannot add category to db", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot add category to db")
	}

	publish(c, h.Producer, category.Name, map[string]any{
		"type":   "category_created",
		"name":   category.Name,
		"userID": sess.UserID,
	})

	l.Info("category_create_success", "name", category.Name)
	return c.Redirect(http.StatusFound, "/grocerystore")
}

func (h *CategoryHandler) EditCategoryPage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.edit_page")
	sess := session.FromEcho(c)

	category, err := h.loadCategory(c)
	if err != nil {
		return err
	}
	if category.UserID != sess.UserID {
		l.Warn("category_edit_refused", "name", category.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to edit the category!")
	}

	data, err := formData(c, h.Sessions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}
	data["Title"] = "Edit " + category.Name
	data["Action"] = "/grocerystore/" + category.Name + "/edit"
	data["Category"] = category
	return c.Render(http.StatusOK, "category_form.html", data)
}

// EditCategory applies a partial update: blank submitted fields keep the
// stored value. Renaming moves every product of the category along inside
// the same transaction.
func (h *CategoryHandler) EditCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.edit")
	sess := session.FromEcho(c)

	category, err := h.loadCategory(c)
	if err != nil {
		return err
	}
	if category.UserID != sess.UserID {
		l.Warn("category_edit_refused", "name", category.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to edit the category!")
	}

	newName := strings.TrimSpace(c.FormValue("name"))
	newDescription := c.FormValue("description")

	updates := map[string]interface{}{}
	if newName != "" && newName != category.Name {
		updates["name"] = newName
	}
	if newDescription != "" {
		updates["description"] = newDescription
	}

	if len(updates) > 0 {
		err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Category{}).Where("name = ?", category.Name).Updates(updates).Error; err != nil {
				return err
			}
			if renamed, ok := updates["name"]; ok {
				if err := tx.Model(&models.Product{}).Where("category_name = ?", category.Name).
					Update("category_name", renamed).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			l.Error("category_edit_error", "status", 500, "reason", "cannot update category", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update category")
		}
	}

	publish(c, h.Producer, category.Name, map[string]any{
		"type":   "category_updated",
		"name":   category.Name,
		"userID": sess.UserID,
	})

	l.Info("category_edit_success", "name", category.Name)
	return c.Redirect(http.StatusFound, "/grocerystore")
}

func (h *CategoryHandler) DeleteCategoryPage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.delete_page")
	sess := session.FromEcho(c)

	category, err := h.loadCategory(c)
	if err != nil {
		return err
	}
	if category.UserID != sess.UserID {
		l.Warn("category_delete_refused", "name", category.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to delete the category!")
	}

	data, err := formData(c, h.Sessions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}
	data["Name"] = category.Name
	data["Warning"] = "All products of the category will be deleted as well."
	data["Action"] = "/grocerystore/" + category.Name + "/delete"
	return c.Render(http.StatusOK, "confirm_delete.html", data)
}

// DeleteCategory removes the category's products first and the category
// itself second, in one transaction. Stored images and search documents
// are cleaned up after the commit.
func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.delete")
	sess := session.FromEcho(c)

	category, err := h.loadCategory(c)
	if err != nil {
		return err
	}
	if category.UserID != sess.UserID {
		l.Warn("category_delete_refused", "name", category.Name, "userID", sess.UserID)
		return refuse(c, h.Sessions, "You are not allowed to delete the category!")
	}

	var products []models.Product
	if err := h.DB.WithContext(ctx).Where("category_name = ?", category.Name).Find(&products).Error; err != nil {
		l.Error("category_delete_error", "status", 500, "reason", "cannot load products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_name = ?", category.Name).Delete(&models.Product{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, "name = ?", category.Name).Error
	})
	if err != nil {
		l.Error("category_delete_error", "status", 500, "reason", "cannot delete category", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete category")
	}

	for _, product := range products {
		if err := h.Uploads.Remove(product.ImageFileName); err != nil {
			l.Error("category_delete_image_error", "product", product.Name, "error", err)
		}
		unindexProduct(c, h.ES, h.ESIndex, product.Name)
		publish(c, h.Producer, product.Name, map[string]any{
			"type": "product_deleted",
			"name": product.Name,
		})
	}

	publish(c, h.Producer, category.Name, map[string]any{
		"type":   "category_deleted",
		"name":   category.Name,
		"userID": sess.UserID,
	})

	l.Info("category_delete_success", "name", category.Name, "products", len(products))
	return c.Redirect(http.StatusFound, "/grocerystore")
}

func (h *CategoryHandler) loadCategory(c echo.Context) (*models.Category, error) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.load")

	name := c.Param("category")
	var category models.Category
	if err := h.DB.WithContext(ctx).First(&category, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("category_not_found", "status", 404, "name", name)
			return nil, echo.NewHTTPError(http.StatusNotFound, "category does not exist")
		}
		l.Error("category_load_error", "status", 500, "reason", "cannot load category", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load category")
	}
	return &category, nil
}
