package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricescout/models"
	"github.com/use-agent/pricescout/store"
	"github.com/use-agent/pricescout/tracker"
)

// Tracker adds products and re-checks their prices.
type Tracker interface {
	Track(ctx context.Context, url string) (*models.Product, error)
	Check(ctx context.Context, id int64) (*tracker.CheckResult, error)
}

// ListProducts returns a handler for GET /api/v1/products.
func ListProducts(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := st.ListProducts(c.Request.Context())
		if err != nil {
			status, detail := errorDetail(err)
			c.JSON(status, models.ProductListResponse{Success: false, Products: []models.Product{}, Error: detail})
			return
		}
		if products == nil {
			products = []models.Product{}
		}
		c.JSON(http.StatusOK, models.ProductListResponse{
			Success:  true,
			Products: products,
			Total:    len(products),
		})
	}
}

// TrackProduct returns a handler for POST /api/v1/products.
func TrackProduct(tr Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TrackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ProductResponse{Success: false, Error: invalidInput(err.Error())})
			return
		}

		product, err := tr.Track(c.Request.Context(), req.URL)
		if err != nil {
			status, detail := errorDetail(err)
			c.JSON(status, models.ProductResponse{Success: false, Error: detail})
			return
		}
		c.JSON(http.StatusCreated, models.ProductResponse{Success: true, Product: product})
	}
}

// GetProduct returns a handler for GET /api/v1/products/:id.
func GetProduct(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, models.ProductResponse{Success: false, Error: invalidInput("invalid product id")})
			return
		}

		product, err := st.GetProduct(c.Request.Context(), id)
		if err != nil {
			status, detail := errorDetail(notFound(err))
			c.JSON(status, models.ProductResponse{Success: false, Error: detail})
			return
		}
		c.JSON(http.StatusOK, models.ProductResponse{Success: true, Product: product})
	}
}

// CheckPrice returns a handler for POST /api/v1/products/:id/check-price.
func CheckPrice(tr Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, models.CheckResponse{Success: false, Error: invalidInput("invalid product id")})
			return
		}

		res, err := tr.Check(c.Request.Context(), id)
		if err != nil {
			status, detail := errorDetail(err)
			c.JSON(status, models.CheckResponse{Success: false, Error: detail})
			return
		}
		c.JSON(http.StatusOK, models.CheckResponse{
			Success:       true,
			Product:       res.Product,
			PreviousPrice: res.PreviousPrice,
			Changed:       res.Changed,
		})
	}
}

// History returns a handler for GET /api/v1/products/:id/history.
func History(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, models.HistoryResponse{Success: false, History: []models.PriceHistory{}, Error: invalidInput("invalid product id")})
			return
		}
		var q models.HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, models.HistoryResponse{Success: false, ProductID: id, History: []models.PriceHistory{}, Error: invalidInput(err.Error())})
			return
		}
		q.Defaults()

		history, err := st.History(c.Request.Context(), id, q.Limit)
		if err != nil {
			status, detail := errorDetail(notFound(err))
			c.JSON(status, models.HistoryResponse{Success: false, ProductID: id, History: []models.PriceHistory{}, Error: detail})
			return
		}
		if history == nil {
			history = []models.PriceHistory{}
		}
		c.JSON(http.StatusOK, models.HistoryResponse{Success: true, ProductID: id, History: history})
	}
}

// notFound turns store.ErrNotFound into PRODUCT_NOT_FOUND.
func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return models.NewScrapeError(models.ErrCodeProductNotFound, "product not found", err)
	}
	return err
}
