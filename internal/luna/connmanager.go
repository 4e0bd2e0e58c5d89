package luna

import "log/slog"

const ConnectionManagerName = "com.palm.connectionmanager"

const (
	stateConnected    = "connected"
	stateDisconnected = "disconnected"
)

// WifiStatus is the wifi section of getStatus.
type WifiStatus struct {
	State                  string `json:"state"`
	IPAddress              string `json:"ipAddress"`
	SSID                   string `json:"ssid"`
	BSSID                  string `json:"bssid"`
	NetworkConfidenceLevel string `json:"networkConfidenceLevel"`
}

// WANStatus is the wan section of getStatus.
type WANStatus struct {
	State     string `json:"state"`
	IPAddress string `json:"ipAddress"`
	Network   string `json:"network"`
}

// LinkState carries a bare connected/disconnected state.
type LinkState struct {
	State string `json:"state"`
}

// ConnectionStatus is the getStatus response.
type ConnectionStatus struct {
	Reply
	IsInternetConnectionAvailable bool       `json:"isInternetConnectionAvailable"`
	Wifi                          WifiStatus `json:"wifi"`
	WAN                           WANStatus  `json:"wan"`
	Wired                         LinkState  `json:"wired"`
	Bridge                        LinkState  `json:"bridge"`
}

// ConnectionManager reports host connectivity in the legacy shape.
type ConnectionManager struct {
	probe NetworkProbe
	table MethodTable
}

func NewConnectionManager(probe NetworkProbe) *ConnectionManager {
	c := &ConnectionManager{probe: probe}
	c.table.
		On("getStatus", AnyOf(Contains("getStatus"), Exact("getstatus")), c.status).
		On("getinfo", Contains("getinfo"), c.status)
	return c
}

func (c *ConnectionManager) Name() string { return ConnectionManagerName }

func (c *ConnectionManager) Handle(method string, p Params) (any, error) {
	return c.table.Dispatch(method, p)
}

func state(connected bool) string {
	if connected {
		return stateConnected
	}
	return stateDisconnected
}

func (c *ConnectionManager) status(string, Params) (any, error) {
	var ns NetworkStatus
	if c.probe != nil {
		var err error
		ns, err = c.probe.Status()
		if err != nil {
			// Report everything disconnected rather than failing the call.
			slog.Warn("connectionmanager probe failed", "error", err)
			ns = NetworkStatus{}
		}
	}
	return ConnectionStatus{
		Reply:                         OK(),
		IsInternetConnectionAvailable: ns.Online,
		Wifi: WifiStatus{
			State:     state(ns.Wifi.Connected),
			IPAddress: ns.Wifi.IPAddress,
		},
		WAN: WANStatus{
			State:     state(ns.WAN.Connected),
			IPAddress: ns.WAN.IPAddress,
			Network:   ns.WAN.Interface,
		},
		Wired:  LinkState{State: state(ns.Wired.Connected)},
		Bridge: LinkState{State: state(ns.Bridge.Connected)},
	}, nil
}
