package luna

import (
	"context"
	"errors"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
)

type staticProbe struct {
	status NetworkStatus
	err    error
}

func (p staticProbe) Status() (NetworkStatus, error) { return p.status, p.err }

func TestConnectionManagerStatus(t *testing.T) {
	probe := staticProbe{status: NetworkStatus{
		Online: true,
		Wifi:   Link{Connected: true, Interface: "wlan0", IPAddress: "192.168.1.5"},
	}}
	r := NewRouter(NewConnectionManager(probe))

	for _, url := range []string{
		"palm://com.palm.connectionmanager/getStatus",
		"palm://com.palm.connectionmanager/getstatus",
		"palm://com.palm.connectionmanager/getinfo",
	} {
		out := decode(t, r.Route(url, `{"subscribe":true}`))
		if out["isInternetConnectionAvailable"] != true {
			t.Fatalf("%s isInternetConnectionAvailable = %v", url, out["isInternetConnectionAvailable"])
		}
		wifi := out["wifi"].(map[string]any)
		if wifi["state"] != "connected" || wifi["ipAddress"] != "192.168.1.5" {
			t.Fatalf("%s wifi = %v", url, wifi)
		}
		for _, k := range []string{"wan", "wired", "bridge"} {
			if s := out[k].(map[string]any)["state"]; s != "disconnected" {
				t.Fatalf("%s %s.state = %v; want disconnected", url, k, s)
			}
		}
	}
}

func TestConnectionManagerProbeFailure(t *testing.T) {
	r := NewRouter(NewConnectionManager(staticProbe{err: errors.New("netlink")}))
	out := decode(t, r.Route("palm://com.palm.connectionmanager/getStatus", ""))
	if out["returnValue"] != true || out["isInternetConnectionAvailable"] != false {
		t.Fatalf("getStatus = %v", out)
	}
}

func TestClassifyInterfaces(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth0", Flags: []string{"up", "broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "fe80::1/64"}, {Addr: "10.0.0.2/24"}}},
		{Name: "wlan0", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "192.168.1.9/24"}}},
		{Name: "wwan0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "100.64.1.1/32"}}},
		{Name: "docker0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "172.17.0.1/16"}}},
	}
	ns := ClassifyInterfaces(ifaces)
	if !ns.Online {
		t.Fatalf("Online = false; want true")
	}
	if !ns.Wired.Connected || ns.Wired.IPAddress != "10.0.0.2" {
		t.Fatalf("Wired = %+v", ns.Wired)
	}
	if ns.Wifi.Connected {
		t.Fatalf("Wifi connected while interface is down")
	}
	if !ns.WAN.Connected || ns.WAN.Interface != "wwan0" {
		t.Fatalf("WAN = %+v", ns.WAN)
	}
	if ns.Bridge.Connected {
		t.Fatalf("docker0 must not count as bridge")
	}
}

func TestHostNetworkProbeListError(t *testing.T) {
	p := &HostNetworkProbe{List: func(context.Context) (psnet.InterfaceStatList, error) {
		return nil, errors.New("denied")
	}}
	if _, err := p.Status(); err == nil {
		t.Fatalf("Status() error = nil; want error")
	}
}
