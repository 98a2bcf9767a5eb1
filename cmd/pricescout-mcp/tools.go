package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/pricescout/models"
)

const defaultHistoryLimit = 20

func handleScrapePrice(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		payload := models.ScrapeRequest{
			URL:    url,
			MaxAge: request.GetInt("max_age", 0),
		}

		var resp models.ScrapeResponse
		if err := api.do(ctx, http.MethodPost, "/api/v1/scrape", payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success || resp.Result == nil {
			return mcp.NewToolResultError(apiError("scrape failed", resp.Error)), nil
		}

		out := formatResult(resp.Result)
		if resp.CacheStatus == "hit" {
			out += "\n(served from cache)"
		}
		return mcp.NewToolResultText(out), nil
	}
}

func handleTrackProduct(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.ProductResponse
		if err := api.do(ctx, http.MethodPost, "/api/v1/products", models.TrackRequest{URL: url}, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success || resp.Product == nil {
			return mcp.NewToolResultError(apiError("tracking failed", resp.Error)), nil
		}
		return mcp.NewToolResultText("Now tracking:\n" + formatProduct(resp.Product)), nil
	}
}

func handleListProducts(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.ProductListResponse
		if err := api.do(ctx, http.MethodGet, "/api/v1/products", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(apiError("listing products failed", resp.Error)), nil
		}
		if len(resp.Products) == 0 {
			return mcp.NewToolResultText("No products are being tracked."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d tracked products\n\n", resp.Total)
		for i := range resp.Products {
			sb.WriteString(formatProduct(&resp.Products[i]))
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleCheckPrice(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireFloat("product_id")
		if err != nil || id < 1 {
			return mcp.NewToolResultError("product_id is required and must be a positive integer"), nil
		}

		var resp models.CheckResponse
		path := fmt.Sprintf("/api/v1/products/%d/check-price", int64(id))
		if err := api.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success || resp.Product == nil {
			return mcp.NewToolResultError(apiError("price check failed", resp.Error)), nil
		}

		status := "Price unchanged."
		if resp.Changed {
			status = fmt.Sprintf("Price changed from %s to %s.",
				formatPrice(resp.PreviousPrice, resp.Product.Currency),
				formatPrice(resp.Product.CurrentPrice, resp.Product.Currency))
		}
		return mcp.NewToolResultText(status + "\n\n" + formatProduct(resp.Product)), nil
	}
}

func handlePriceHistory(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireFloat("product_id")
		if err != nil || id < 1 {
			return mcp.NewToolResultError("product_id is required and must be a positive integer"), nil
		}
		limit := request.GetInt("limit", defaultHistoryLimit)
		if limit < 1 || limit > 1000 {
			limit = defaultHistoryLimit
		}

		var resp models.HistoryResponse
		path := fmt.Sprintf("/api/v1/products/%d/history?limit=%d", int64(id), limit)
		if err := api.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(apiError("history lookup failed", resp.Error)), nil
		}
		return mcp.NewToolResultText(formatHistory(resp.ProductID, resp.History)), nil
	}
}

// ── formatting ──────────────────────────────────────────────────────

var currencySymbols = map[models.Currency]string{
	models.GBP: "£",
	models.USD: "$",
	models.EUR: "€",
}

func formatPrice(v *float64, c models.Currency) string {
	if v == nil {
		return "n/a"
	}
	if sym, ok := currencySymbols[c]; ok {
		return fmt.Sprintf("%s%.2f", sym, *v)
	}
	return fmt.Sprintf("%.2f %s", *v, c)
}

func formatResult(r *models.ScrapeResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", r.Name)
	if !r.HasPrice() {
		sb.WriteString("No price was found on the page.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Current price: %s", formatPrice(r.CurrentPrice, r.Currency))
	if r.LowConfidence {
		sb.WriteString(" (low confidence guess)")
	}
	sb.WriteString("\n")
	if r.OriginalPrice != nil {
		fmt.Fprintf(&sb, "Original price: %s\n", formatPrice(r.OriginalPrice, r.Currency))
	}
	fmt.Fprintf(&sb, "Currency: %s", r.Currency)
	if r.CurrentSource != "" {
		fmt.Fprintf(&sb, "\nFound by: %s", r.CurrentSource)
	}
	return sb.String()
}

func formatProduct(p *models.Product) string {
	line := fmt.Sprintf("[%d] %s: %s", p.ID, p.Name, formatPrice(p.CurrentPrice, p.Currency))
	if p.OriginalPrice != nil {
		line += fmt.Sprintf(" (was %s)", formatPrice(p.OriginalPrice, p.Currency))
	}
	return line + "\n    " + p.URL
}

func formatHistory(productID int64, rows []models.PriceHistory) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No price history for product %d.", productID)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Price history for product %d (%d entries)\n\n", productID, len(rows))
	for _, h := range rows {
		fmt.Fprintf(&sb, "%s  %s", h.CheckedAt.Format("2006-01-02 15:04"), formatPrice(h.Price, h.Currency))
		if h.OriginalPrice != nil {
			fmt.Fprintf(&sb, " (was %s)", formatPrice(h.OriginalPrice, h.Currency))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
