package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/pricescout/extractor"
	"github.com/use-agent/pricescout/models"
)

// HTTPEngine loads server-rendered pages over plain HTTP with a Chrome-like
// TLS fingerprint. It cannot run JavaScript.
type HTTPEngine struct {
	client    *http.Client
	userAgent string
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine. proxy may be empty or an http(s) URL.
func NewHTTPEngine(userAgent, proxy string, timeout time.Duration) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	return &HTTPEngine{
		userAgent: userAgent,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (e *HTTPEngine) Name() string { return "http" }

// Load fetches the page and parses it into a static document.
func (e *HTTPEngine) Load(ctx context.Context, targetURL string) (Page, error) {
	body, err := e.fetch(ctx, targetURL)
	if err != nil {
		return nil, Categorize(err, "http fetch failed")
	}
	if NeedsBrowser(body) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			"page requires javascript rendering", ErrNeedsBrowser)
	}

	doc, err := extractor.NewHTMLDocument(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "unparseable html", err)
	}
	return StaticPage{doc}, nil
}

// ErrNeedsBrowser marks an HTTP response that is a script shell.
var ErrNeedsBrowser = fmt.Errorf("http_engine: javascript shell")

func (e *HTTPEngine) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	// 10 MB cap.
	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("http_engine: read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return nil, fmt.Errorf("http_engine: non-html or error status %d (content-type: %s)", resp.StatusCode, ct)
	}
	return body, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

var reNoscript = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// NeedsBrowser guesses whether fetched HTML is a script shell whose product
// details only appear after JavaScript runs.
func NeedsBrowser(body []byte) bool {
	text := visibleText(body)
	if len(text) < 200 {
		return true
	}

	lower := strings.ToLower(string(body))
	for _, root := range []string{`<div id="root"></div>`, `<div id="app"></div>`, `<div id="__next"></div>`} {
		if strings.Contains(lower, root) {
			return true
		}
	}
	if reNoscript.MatchString(lower) {
		return true
	}
	// Script heavy with little text.
	return strings.Count(lower, "<script") > 10 && len(text) < 500
}

// visibleText returns the text inside <body>, skipping script, style and
// noscript content.
func visibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
