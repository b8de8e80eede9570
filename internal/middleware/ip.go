package middleware

import (
    "net"

    "github.com/labstack/echo/v4"
)

// NewIPExtractor decides what c.RealIP() returns, and with it the rate
// limit key.  With no trusted proxies the TCP peer is used and forwarding
// headers are ignored.  Otherwise X-Forwarded-For is walked from the right
// and only hops inside the given CIDRs are skipped.  Entries that are not
// valid CIDRs are ignored.
func NewIPExtractor(trustedProxies []string) echo.IPExtractor {
    if len(trustedProxies) == 0 {
        return echo.ExtractIPDirect()
    }
    opts := []echo.TrustOption{
        echo.TrustLoopback(false),
        echo.TrustLinkLocal(false),
        echo.TrustPrivateNet(false),
    }
    for _, cidr := range trustedProxies {
        if _, n, err := net.ParseCIDR(cidr); err == nil {
            opts = append(opts, echo.TrustIPRange(n))
        }
    }
    return echo.ExtractIPFromXFFHeader(opts...)
}
