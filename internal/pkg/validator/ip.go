package validator

import (
	"net/netip"
	"strings"
)

// NormalizeIP 去掉端口和 IPv6 zone，返回规范形式；无法解析时返回 fallback
func NormalizeIP(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().WithZone("").Unmap().String()
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return fallback
	}
	return addr.WithZone("").Unmap().String()
}
