package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// trackerHosts are ad, analytics and consent hosts that slow product pages
// down without affecting the rendered price.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"criteo.com":            {},
	"criteo.net":            {},
	"hotjar.com":            {},
	"segment.io":            {},
	"segment.com":           {},
	"optimizely.com":        {},
	"bluekai.com":           {},
	"demdex.net":            {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"trustpilot.com":        {},
	"klaviyo.com":           {},
	"cookielaw.org":         {},
	"onetrust.com":          {},
	"consensu.org":          {},
}

// isTrackerHost reports whether host or any parent domain is blocklisted.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// blockedSet resolves config names, ignoring unknown ones.
func blockedSet(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// setupHijack installs a request interceptor that fails blocked resource
// types and, when blockTrackers is set, tracker hosts. It returns nil when
// there is nothing to block; otherwise the caller must Stop the router.
func setupHijack(page *rod.Page, blockedTypes []string, blockTrackers bool) *rod.HijackRouter {
	blocked := blockedSet(blockedTypes)
	if len(blocked) == 0 && !blockTrackers {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := blocked[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if blockTrackers {
			if u, err := url.Parse(h.Request.URL().String()); err == nil && isTrackerHost(u.Hostname()) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
