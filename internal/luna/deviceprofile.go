package luna

import "os"

const DeviceProfileName = "com.palm.deviceprofile"

// DeviceProfile describes the emulated device.
type DeviceProfile struct {
	ModelName            string `json:"modelName"`
	ModelNameASCII       string `json:"modelNameAscii"`
	PlatformVersion      string `json:"platformVersion"`
	PlatformVersionMajor int    `json:"platformVersionMajor"`
	PlatformVersionMinor int    `json:"platformVersionMinor"`
	PlatformVersionDot   int    `json:"platformVersionDot"`
	CarrierName          string `json:"carrierName"`
	SerialNumber         string `json:"serialNumber"`
	ScreenWidth          int    `json:"screenWidth"`
	ScreenHeight         int    `json:"screenHeight"`
	MinimumCardWidth     int    `json:"minimumCardWidth"`
	MinimumCardHeight    int    `json:"minimumCardHeight"`
	MaximumCardWidth     int    `json:"maximumCardWidth"`
	MaximumCardHeight    int    `json:"maximumCardHeight"`
	KeyboardType         string `json:"keyboardType"`
	WifiAvailable        bool   `json:"wifiAvailable"`
	BluetoothAvailable   bool   `json:"bluetoothAvailable"`
	CarrierAvailable     bool   `json:"carrierAvailable"`
	CoreNaviButton       bool   `json:"coreNaviButton"`
	DockModeEnabled      bool   `json:"dockModeEnabled"`
}

// DefaultDeviceProfile is a 3.0.5 tablet named after the host.
func DefaultDeviceProfile() DeviceProfile {
	model, err := os.Hostname()
	if err != nil || model == "" {
		model = "lunashim"
	}
	return DeviceProfile{
		ModelName:            model,
		ModelNameASCII:       asciiOnly(model),
		PlatformVersion:      "3.0.5",
		PlatformVersionMajor: 3,
		PlatformVersionMinor: 0,
		PlatformVersionDot:   5,
		ScreenWidth:          1024,
		ScreenHeight:         768,
		MinimumCardWidth:     320,
		MinimumCardHeight:    480,
		MaximumCardWidth:     1024,
		MaximumCardHeight:    768,
		KeyboardType:         "QWERTY",
		WifiAvailable:        true,
		BluetoothAvailable:   true,
	}
}

func asciiOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < 0x80 {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// DeviceProfileResult is the getDeviceProfile response.
type DeviceProfileResult struct {
	Reply
	DeviceInfo DeviceProfile `json:"deviceInfo"`
}

// DeviceProfileService exposes the device description on the bus.
type DeviceProfileService struct {
	profile DeviceProfile
}

func NewDeviceProfileService(p DeviceProfile) *DeviceProfileService {
	return &DeviceProfileService{profile: p}
}

func (d *DeviceProfileService) Name() string { return DeviceProfileName }

func (d *DeviceProfileService) Profile() DeviceProfile { return d.profile }

func (d *DeviceProfileService) Handle(method string, _ Params) (any, error) {
	if AnyOf(Suffix("getDeviceProfile"), Suffix("getDeviceId"))(method) {
		return DeviceProfileResult{Reply: OK(), DeviceInfo: d.profile}, nil
	}
	return NewStub("", method), nil
}
