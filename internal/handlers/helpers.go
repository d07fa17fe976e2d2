package handlers

import (
	"context"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/lisakugler/grocery-store/internal/logging"
	"github.com/lisakugler/grocery-store/internal/models"
	"github.com/lisakugler/grocery-store/internal/mykafka"
	"github.com/lisakugler/grocery-store/internal/service/search"
	"github.com/lisakugler/grocery-store/internal/session"
)

// publish sends a domain event, best effort. A nil producer means events
// are disabled (local runs, tests).
func publish(c echo.Context, p *mykafka.Producer, key string, event map[string]any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

// indexProduct mirrors a product into the search index, best effort.
func indexProduct(c echo.Context, es *elasticsearch.Client, index string, prod *models.Product) {
	if es == nil {
		return
	}
	if err := search.Index(c.Request().Context(), es, index, prod); err != nil {
		logging.FromContext(c.Request().Context()).Error("es_index_error", "error", err)
	}
}

func unindexProduct(c echo.Context, es *elasticsearch.Client, index, name string) {
	if es == nil {
		return
	}
	if err := search.Delete(c.Request().Context(), es, index, name); err != nil {
		logging.FromContext(c.Request().Context()).Error("es_delete_error", "error", err)
	}
}

// pageData collects the fields every page template expects. The flash
// notice is consumed here, so it shows up exactly once.
func pageData(c echo.Context, m *session.Manager) map[string]interface{} {
	data := map[string]interface{}{}
	sess := session.FromEcho(c)
	if sess == nil {
		return data
	}
	data["Username"] = sess.Username
	if flash, err := m.PopFlash(c.Request().Context(), sess); err == nil && flash != "" {
		data["Flash"] = flash
	}
	return data
}

// formData is pageData plus a fresh anti-forgery token for the form about
// to be rendered.
func formData(c echo.Context, m *session.Manager) (map[string]interface{}, error) {
	data := pageData(c, m)
	sess := session.FromEcho(c)
	if sess != nil {
		state, err := m.IssueState(c.Request().Context(), sess)
		if err != nil {
			return nil, err
		}
		data["State"] = state
	}
	return data, nil
}

// refuse flashes an authorization notice and sends the caller back to the
// store page without mutating anything.
func refuse(c echo.Context, m *session.Manager, notice string) error {
	if sess := session.FromEcho(c); sess != nil {
		if err := m.SetFlash(c.Request().Context(), sess, notice); err != nil {
			return err
		}
	}
	return c.Redirect(302, "/grocerystore")
}
