package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/lisakugler/grocery-store/internal/handlers"
	"github.com/lisakugler/grocery-store/internal/middleware/auth"
	"github.com/lisakugler/grocery-store/internal/middleware/csrf"
	"github.com/lisakugler/grocery-store/internal/session"
)

type Deps struct {
	StoreHandler    *handlers.StoreHandler
	AuthHandler     *handlers.AuthHandler
	CategoryHandler *handlers.CategoryHandler
	ProductHandler  *handlers.ProductHandler
	SearchHandler   *handlers.SearchHandler
	FeedsHandler    *handlers.FeedsHandler
	Sessions        *session.Manager
	UploadDir       string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.Use(d.Sessions.Middleware)
	e.Use(csrf.Middleware(d.Sessions, csrf.Config{}))

	loggedIn := auth.RequireLogin(d.Sessions)

	e.GET("/", d.StoreHandler.Index)
	e.GET("/login", d.StoreHandler.LoginPage)
	e.GET("/logout", d.AuthHandler.Logout)
	e.POST("/gconnect", d.AuthHandler.GoogleConnect)
	e.POST("/fbconnect", d.AuthHandler.FacebookConnect)

	e.Static("/uploads", d.UploadDir)

	store := e.Group("/grocerystore")

	store.GET("", d.StoreHandler.Index)
	store.GET("/search", d.SearchHandler.Search)

	store.GET("/categories/JSON", d.FeedsHandler.CategoriesJSON)
	store.GET("/categories/XML", d.FeedsHandler.CategoriesXML)
	store.GET("/categories/Atom", d.FeedsHandler.CategoriesAtom)
	store.GET("/products/JSON", d.FeedsHandler.ProductsJSON)
	store.GET("/products/XML", d.FeedsHandler.ProductsXML)
	store.GET("/products/Atom", d.FeedsHandler.ProductsAtom)

	store.GET("/newcategory", d.CategoryHandler.NewCategoryPage, loggedIn)
	store.POST("/newcategory", d.CategoryHandler.CreateCategory, loggedIn)
	store.GET("/newproduct", d.ProductHandler.NewProductPage, loggedIn)
	store.POST("/newproduct", d.ProductHandler.CreateProduct, loggedIn)
	store.GET("/editproduct/:product", d.ProductHandler.EditProductPage, loggedIn)
	store.POST("/editproduct/:product", d.ProductHandler.EditProduct, loggedIn)

	store.GET("/:category/products", d.StoreHandler.CategoryPage)
	store.GET("/:category/products/JSON", d.FeedsHandler.CategoryProductsJSON)
	store.GET("/:category/products/XML", d.FeedsHandler.CategoryProductsXML)
	store.GET("/:category/products/Atom", d.FeedsHandler.CategoryProductsAtom)

	store.GET("/:category/edit", d.CategoryHandler.EditCategoryPage, loggedIn)
	store.POST("/:category/edit", d.CategoryHandler.EditCategory, loggedIn)
	store.GET("/:category/delete", d.CategoryHandler.DeleteCategoryPage, loggedIn)
	store.POST("/:category/delete", d.CategoryHandler.DeleteCategory, loggedIn)

	store.GET("/:category/:product", d.StoreHandler.ProductPage)
	store.GET("/:category/:product/JSON", d.FeedsHandler.ProductJSON)
	store.GET("/:category/:product/XML", d.FeedsHandler.ProductXML)
	store.GET("/:category/:product/Atom", d.FeedsHandler.ProductAtom)
	store.GET("/:category/:product/delete", d.ProductHandler.DeleteProductPage, loggedIn)
	store.POST("/:category/:product/delete", d.ProductHandler.DeleteProduct, loggedIn)
}
