package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("PRICESCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PRICESCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PRICESCOUT_API_KEY is required")
		os.Exit(1)
	}

	api := newAPIClient(apiURL, apiKey, 120*time.Second)

	s := server.NewMCPServer(
		"pricescout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	// scrape_price tool
	scrapePriceTool := mcp.NewTool("scrape_price",
		mcp.WithDescription("Extract the product name, current price, original (pre-sale) price and currency from a product page. Does not start tracking the product."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The product page URL"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached result up to this many milliseconds old (default: 0, always scrape)"),
		),
	)
	s.AddTool(scrapePriceTool, handleScrapePrice(api))

	// track_product tool
	trackProductTool := mcp.NewTool("track_product",
		mcp.WithDescription("Start tracking a product page. The price is recorded now and re-checked on schedule."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The product page URL"),
		),
	)
	s.AddTool(trackProductTool, handleTrackProduct(api))

	// list_products tool
	listProductsTool := mcp.NewTool("list_products",
		mcp.WithDescription("List every tracked product with its latest known price."),
	)
	s.AddTool(listProductsTool, handleListProducts(api))

	// check_price tool
	checkPriceTool := mcp.NewTool("check_price",
		mcp.WithDescription("Re-scrape a tracked product now and report whether its price changed."),
		mcp.WithNumber("product_id",
			mcp.Required(),
			mcp.Description("ID of the tracked product"),
		),
	)
	s.AddTool(checkPriceTool, handleCheckPrice(api))

	// price_history tool
	priceHistoryTool := mcp.NewTool("price_history",
		mcp.WithDescription("Show recorded price observations for a tracked product, newest first."),
		mcp.WithNumber("product_id",
			mcp.Required(),
			mcp.Description("ID of the tracked product"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of observations (default: 20, max: 1000)"),
		),
	)
	s.AddTool(priceHistoryTool, handlePriceHistory(api))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
