package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lisakugler/grocery-store/internal/models"
)

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: user.ID}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	form := url.Values{
		"name":        {"Milk"},
		"description": {"Whole milk"},
		"price":       {"$2.49"},
		"category":    {"Dairy"},
	}
	rec, c := env.doFormRequest(http.MethodPost, "/grocerystore/newproduct", form, sess)

	require.NoError(t, h.CreateProduct(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/grocerystore/Dairy/products", rec.Header().Get("Location"))

	var product models.Product
	require.NoError(t, env.DB.First(&product, "name = ?", "Milk").Error)
	require.Equal(t, "$2.49", product.Price)
	require.Equal(t, "Dairy", product.CategoryName)
	require.Equal(t, user.ID, product.UserID)
	require.Empty(t, product.ImageFileName)
}

func TestCreateProductUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	form := url.Values{"name": {"Milk"}, "category": {"Nope"}}
	_, c := env.doFormRequest(http.MethodPost, "/grocerystore/newproduct", form, sess)

	requireHTTPError(t, h.CreateProduct(c), http.StatusBadRequest)
}

func TestCreateProductWithUppercaseJPG(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: user.ID}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	fields := map[string]string{"name": "Milk", "category": "Dairy"}
	_, c := env.doMultipartRequest("/grocerystore/newproduct", fields, "image", "photo.JPG", sess)

	require.NoError(t, h.CreateProduct(c))

	var product models.Product
	require.NoError(t, env.DB.First(&product, "name = ?", "Milk").Error)
	require.Equal(t, "photo.JPG", product.ImageFileName)
	require.True(t, env.Uploads.Exists("photo.JPG"))
}

func TestCreateProductSkipsDisallowedExtension(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: user.ID}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	fields := map[string]string{"name": "Milk", "category": "Dairy"}
	_, c := env.doMultipartRequest("/grocerystore/newproduct", fields, "image", "photo.bmp", sess)

	require.NoError(t, h.CreateProduct(c))

	var product models.Product
	require.NoError(t, env.DB.First(&product, "name = ?", "Milk").Error)
	require.Empty(t, product.ImageFileName)
	require.False(t, env.Uploads.Exists("photo.bmp"))
}

func TestEditProductPartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: user.ID}).Error)
	require.NoError(t, env.DB.Create(&models.Product{
		Name: "Milk", Description: "Whole milk", Price: "$2.49",
		ImageFileName: "milk.jpg", CategoryName: "Dairy", UserID: user.ID,
	}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	form := url.Values{"name": {""}, "description": {""}, "price": {"$2.99"}, "category": {""}}
	rec, c := env.doFormRequest(http.MethodPost, "/grocerystore/editproduct/Milk", form, sess)
	c.SetParamNames("product")
	c.SetParamValues("Milk")

	require.NoError(t, h.EditProduct(c))
	require.Equal(t, http.StatusFound, rec.Code)

	var product models.Product
	require.NoError(t, env.DB.First(&product, "name = ?", "Milk").Error)
	require.Equal(t, "$2.99", product.Price)
	require.Equal(t, "Whole milk", product.Description)
	require.Equal(t, "Dairy", product.CategoryName)
	require.Equal(t, "milk.jpg", product.ImageFileName)
}

func TestEditProductRename(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: user.ID}).Error)
	require.NoError(t, env.DB.Create(&models.Product{Name: "Milk", CategoryName: "Dairy", UserID: user.ID}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	form := url.Values{"name": {"Oat Milk"}}
	_, c := env.doFormRequest(http.MethodPost, "/grocerystore/editproduct/Milk", form, sess)
	c.SetParamNames("product")
	c.SetParamValues("Milk")

	require.NoError(t, h.EditProduct(c))

	var count int64
	env.DB.Model(&models.Product{}).Where("name = ?", "Milk").Count(&count)
	require.Zero(t, count)
	env.DB.Model(&models.Product{}).Where("name = ?", "Oat Milk").Count(&count)
	require.EqualValues(t, 1, count)
}

func TestEditProductNonOwnerRefused(t *testing.T) {
	env := newTestEnv(t)
	owner := env.newUser("alice", "alice@example.com")
	intruder := env.newUser("bob", "bob@example.com")
	sess := env.newSession(&intruder)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: owner.ID}).Error)
	require.NoError(t, env.DB.Create(&models.Product{Name: "Milk", Price: "$2.49", CategoryName: "Dairy", UserID: owner.ID}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	form := url.Values{"price": {"$0.01"}}
	rec, c := env.doFormRequest(http.MethodPost, "/grocerystore/editproduct/Milk", form, sess)
	c.SetParamNames("product")
	c.SetParamValues("Milk")

	require.NoError(t, h.EditProduct(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/grocerystore", rec.Header().Get("Location"))

	var product models.Product
	require.NoError(t, env.DB.First(&product, "name = ?", "Milk").Error)
	require.Equal(t, "$2.49", product.Price)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: user.ID}).Error)
	require.NoError(t, env.DB.Create(&models.Product{Name: "Milk", CategoryName: "Dairy", UserID: user.ID}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	rec, c := env.doFormRequest(http.MethodPost, "/grocerystore/Dairy/Milk/delete", url.Values{}, sess)
	c.SetParamNames("category", "product")
	c.SetParamValues("Dairy", "Milk")

	require.NoError(t, h.DeleteProduct(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/grocerystore/Dairy/products", rec.Header().Get("Location"))

	var count int64
	env.DB.Model(&models.Product{}).Where("name = ?", "Milk").Count(&count)
	require.Zero(t, count)
}

func TestDeleteProductWrongCategory(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser("alice", "alice@example.com")
	sess := env.newSession(&user)

	require.NoError(t, env.DB.Create(&models.Category{Name: "Dairy", UserID: user.ID}).Error)
	require.NoError(t, env.DB.Create(&models.Product{Name: "Milk", CategoryName: "Dairy", UserID: user.ID}).Error)

	h := &ProductHandler{DB: env.DB, Sessions: env.Sessions, Uploads: env.Uploads}

	_, c := env.doFormRequest(http.MethodPost, "/grocerystore/Bakery/Milk/delete", url.Values{}, sess)
	c.SetParamNames("category", "product")
	c.SetParamValues("Bakery", "Milk")

	requireHTTPError(t, h.DeleteProduct(c), http.StatusNotFound)
}
