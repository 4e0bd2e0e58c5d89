package luna

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// InterfaceLister returns host interfaces. gopsutil's InterfacesWithContext
// satisfies it.
type InterfaceLister func(ctx context.Context) (psnet.InterfaceStatList, error)

// HostNetworkProbe classifies host interfaces by name prefix: wl* is wifi,
// ww*/rmnet* is wan, br*/virbr* is bridge, en*/eth* is wired.
type HostNetworkProbe struct {
	List    InterfaceLister
	Timeout time.Duration
}

func NewHostNetworkProbe() *HostNetworkProbe {
	return &HostNetworkProbe{List: psnet.InterfacesWithContext, Timeout: 2 * time.Second}
}

func (h *HostNetworkProbe) Status() (NetworkStatus, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ifaces, err := h.List(ctx)
	if err != nil {
		return NetworkStatus{}, fmt.Errorf("list interfaces: %w", err)
	}
	return ClassifyInterfaces(ifaces), nil
}

// ClassifyInterfaces builds a NetworkStatus from an interface list. Only
// interfaces that are up, not loopback and have a routable address count.
// The first interface of each kind wins.
func ClassifyInterfaces(ifaces psnet.InterfaceStatList) NetworkStatus {
	var ns NetworkStatus
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		ip := firstRoutableAddr(iface.Addrs)
		if ip == "" {
			continue
		}

		link := Link{Connected: true, Interface: iface.Name, IPAddress: ip}
		var slot *Link
		switch name := iface.Name; {
		case strings.HasPrefix(name, "wl"):
			slot = &ns.Wifi
		case strings.HasPrefix(name, "ww"), strings.HasPrefix(name, "rmnet"):
			slot = &ns.WAN
		case strings.HasPrefix(name, "br"), strings.HasPrefix(name, "virbr"):
			slot = &ns.Bridge
		case strings.HasPrefix(name, "en"), strings.HasPrefix(name, "eth"):
			slot = &ns.Wired
		default:
			continue
		}
		if !slot.Connected {
			*slot = link
		}
	}
	ns.Online = ns.Wifi.Connected || ns.WAN.Connected || ns.Wired.Connected || ns.Bridge.Connected
	return ns
}

func firstRoutableAddr(addrs psnet.InterfaceAddrList) string {
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.Addr)
		var ip netip.Addr
		if err == nil {
			ip = prefix.Addr()
		} else if ip, err = netip.ParseAddr(a.Addr); err != nil {
			continue
		}
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return ip.String()
	}
	return ""
}
