package platform

import (
	"context"
	"errors"
	"net"
	"os"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/syncstream/netpulse/pkg/types"
)

// ErrNoInterfaces is returned when neither interface enumeration nor the
// hostname fallback could produce an address.
var ErrNoInterfaces = errors.New("unable to detect interfaces")

// Interfaces returns the IPv4 address and netmask of every interface that
// has one. When enumeration fails it falls back to resolving the local
// hostname into a single best-effort "default" entry.
func Interfaces(ctx context.Context) (map[string]types.InterfaceInfo, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return fallbackInterface()
	}

	out := make(map[string]types.InterfaceInfo)
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			ip, ipnet, err := net.ParseCIDR(addr.Addr)
			if err != nil || ip.To4() == nil {
				continue
			}
			out[iface.Name] = types.InterfaceInfo{
				IPv4:    ip.String(),
				Netmask: net.IP(ipnet.Mask).String(),
			}
			break
		}
	}
	if len(out) == 0 {
		return fallbackInterface()
	}
	return out, nil
}

// fallbackInterface resolves the machine's own hostname. The netmask is
// unknown on this path.
func fallbackInterface() (map[string]types.InterfaceInfo, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, ErrNoInterfaces
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return nil, ErrNoInterfaces
	}
	return map[string]types.InterfaceInfo{
		"default": {IPv4: addrs[0], Netmask: "N/A"},
	}, nil
}
