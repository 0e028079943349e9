package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Query parameters that vary per click without changing the document. Kept in
// sync with what the big aggregators append to outbound links.
var trackingParams = map[string]struct{}{
	"fbclid":   {},
	"gclid":    {},
	"igshid":   {},
	"mc_cid":   {},
	"mc_eid":   {},
	"ref":      {},
	"ref_src":  {},
	"smid":     {},
	"cmpid":    {},
	"ncid":     {},
	"ocid":     {},
	"share_id": {},
}

// NormalizeURL canonicalizes a link so syndicated copies of the same article
// compare equal: lower-cases scheme and host, drops default ports, fragments
// and tracking parameters, sorts the remaining query and trims the trailing
// slash.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingParams[lower]; ok {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// ContentHash produces a stable hex digest over the given parts, separated so
// ("ab","c") and ("a","bc") never collide.
func ContentHash(parts ...string) string {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
