package handlers

import (
	"encoding/xml"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/logging"
	"github.com/lisakugler/grocery-store/internal/models"
)

// FeedsHandler serves the read-only JSON/XML/Atom projections. The field
// sets mirror the models exactly.
type FeedsHandler struct {
	DB *gorm.DB
}

type xmlCategory struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	UserID      uint   `xml:"user_id"`
}

type xmlCategories struct {
	XMLName    xml.Name      `xml:"categories"`
	Categories []xmlCategory `xml:"category"`
}

type xmlProduct struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Price       string `xml:"price"`
	Image       string `xml:"image"`
	Category    string `xml:"category"`
	UserID      uint   `xml:"user_id"`
}

type xmlProducts struct {
	XMLName  xml.Name     `xml:"products"`
	Products []xmlProduct `xml:"product"`
}

type xmlSingleProduct struct {
	XMLName xml.Name `xml:"product"`
	xmlProduct
}

type atomText struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
	Author  atomAuthor `xml:"author"`
	Link    atomLink   `xml:"link"`
	Content atomText   `xml:"content"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

func (h *FeedsHandler) CategoriesJSON(c echo.Context) error {
	categories, err := h.allCategories(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": categories})
}

func (h *FeedsHandler) ProductsJSON(c echo.Context) error {
	products, err := h.allProducts(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

func (h *FeedsHandler) CategoryProductsJSON(c echo.Context) error {
	products, err := h.categoryProducts(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

func (h *FeedsHandler) ProductJSON(c echo.Context) error {
	product, err := h.singleProduct(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"product": product})
}

func (h *FeedsHandler) CategoriesXML(c echo.Context) error {
	categories, err := h.allCategories(c)
	if err != nil {
		return err
	}
	out := xmlCategories{}
	for _, category := range categories {
		out.Categories = append(out.Categories, xmlCategory{
			Name:        category.Name,
			Description: category.Description,
			UserID:      category.UserID,
		})
	}
	return c.XML(http.StatusOK, out)
}

func (h *FeedsHandler) ProductsXML(c echo.Context) error {
	products, err := h.allProducts(c)
	if err != nil {
		return err
	}
	return c.XML(http.StatusOK, buildProductsXML(products))
}

func (h *FeedsHandler) CategoryProductsXML(c echo.Context) error {
	products, err := h.categoryProducts(c)
	if err != nil {
		return err
	}
	return c.XML(http.StatusOK, buildProductsXML(products))
}

func (h *FeedsHandler) ProductXML(c echo.Context) error {
	product, err := h.singleProduct(c)
	if err != nil {
		return err
	}
	return c.XML(http.StatusOK, xmlSingleProduct{xmlProduct: buildProductXML(product)})
}

func (h *FeedsHandler) CategoriesAtom(c echo.Context) error {
	categories, err := h.allCategories(c)
	if err != nil {
		return err
	}

	feed := h.newFeed(c, "Categories", "/grocerystore")
	for _, category := range categories {
		author, err := h.ownerName(c, category.UserID)
		if err != nil {
			return err
		}
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   category.Name,
			ID:      category.Name,
			Updated: atomNow(),
			Author:  atomAuthor{Name: author},
			Link:    atomLink{Href: "/grocerystore/" + category.Name + "/products"},
			Content: atomText{Type: "text", Body: category.Description},
		})
	}
	return c.XML(http.StatusOK, feed)
}

func (h *FeedsHandler) ProductsAtom(c echo.Context) error {
	products, err := h.allProducts(c)
	if err != nil {
		return err
	}
	return h.productsFeed(c, "Products", "/grocerystore", products)
}

func (h *FeedsHandler) CategoryProductsAtom(c echo.Context) error {
	products, err := h.categoryProducts(c)
	if err != nil {
		return err
	}
	return h.productsFeed(c, "Category", "/grocerystore/"+c.Param("category")+"/products", products)
}

func (h *FeedsHandler) ProductAtom(c echo.Context) error {
	product, err := h.singleProduct(c)
	if err != nil {
		return err
	}
	return h.productsFeed(c, "Product",
		"/grocerystore/"+product.CategoryName+"/"+product.Name,
		[]models.Product{*product})
}

func (h *FeedsHandler) productsFeed(c echo.Context, title, pageURL string, products []models.Product) error {
	feed := h.newFeed(c, title, pageURL)
	for _, product := range products {
		author, err := h.ownerName(c, product.UserID)
		if err != nil {
			return err
		}
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   product.Name,
			ID:      product.Name,
			Updated: atomNow(),
			Author:  atomAuthor{Name: author},
			Link:    atomLink{Href: "/grocerystore/" + product.CategoryName + "/" + product.Name},
			Content: atomText{Type: "text", Body: product.Description},
		})
	}
	return c.XML(http.StatusOK, feed)
}

func (h *FeedsHandler) newFeed(c echo.Context, title, pageURL string) *atomFeed {
	return &atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   title,
		ID:      c.Request().RequestURI,
		Updated: atomNow(),
		Links: []atomLink{
			{Href: c.Request().RequestURI, Rel: "self"},
			{Href: pageURL},
		},
	}
}

func atomNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func buildProductXML(product *models.Product) xmlProduct {
	return xmlProduct{
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Image:       product.ImageFileName,
		Category:    product.CategoryName,
		UserID:      product.UserID,
	}
}

func buildProductsXML(products []models.Product) xmlProducts {
	out := xmlProducts{}
	for i := range products {
		out.Products = append(out.Products, buildProductXML(&products[i]))
	}
	return out
}

func (h *FeedsHandler) allCategories(c echo.Context) ([]models.Category, error) {
	ctx := c.Request().Context()
	var categories []models.Category
	if err := h.DB.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load categories")
	}
	return categories, nil
}

func (h *FeedsHandler) allProducts(c echo.Context) ([]models.Product, error) {
	ctx := c.Request().Context()
	var products []models.Product
	if err := h.DB.WithContext(ctx).Order("category_name ASC").Find(&products).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}
	return products, nil
}

func (h *FeedsHandler) categoryProducts(c echo.Context) ([]models.Product, error) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "feeds.category_products")

	name := c.Param("category")
	var category models.Category
	if err := h.DB.WithContext(ctx).First(&category, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("category_not_found", "status", 404, "name", name)
			return nil, echo.NewHTTPError(http.StatusNotFound, "category does not exist")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load category")
	}

	var products []models.Product
	if err := h.DB.WithContext(ctx).Where("category_name = ?", category.Name).Find(&products).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}
	return products, nil
}

func (h *FeedsHandler) singleProduct(c echo.Context) (*models.Product, error) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "feeds.product")

	name := c.Param("product")
	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("product_not_found", "status", 404, "name", name)
			return nil, echo.NewHTTPError(http.StatusNotFound, "product does not exist")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load product")
	}
	return &product, nil
}

func (h *FeedsHandler) ownerName(c echo.Context, userID uint) (string, error) {
	ctx := c.Request().Context()
	var owner models.User
	if err := h.DB.WithContext(ctx).First(&owner, userID).Error; err != nil {
		return "", echo.NewHTTPError(http.StatusInternalServerError, "cannot load owner")
	}
	return owner.Name, nil
}
