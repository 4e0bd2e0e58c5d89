package luna

import (
	"os"
	"strings"
	"time"
)

// Clock supplies the host time. The zone of the returned time is the zone
// reported to applications.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// ZoneName returns an IANA name for loc. time.Local reports "Local", so the
// name is recovered from $TZ or the /etc/localtime link.
func ZoneName(loc *time.Location) string {
	if loc == nil {
		return "UTC"
	}
	if name := loc.String(); name != "Local" {
		return name
	}
	if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); tz != "" {
		return tz
	}
	if link, err := os.Readlink("/etc/localtime"); err == nil {
		if i := strings.Index(link, "zoneinfo/"); i >= 0 {
			return link[i+len("zoneinfo/"):]
		}
	}
	return "UTC"
}

// Locale is the host locale reported by the system service.
type Locale struct {
	Language  string
	Country   string
	Use24Hour bool
}

// ParseLocale accepts en_US, en-US or en-us.
func ParseLocale(s string) Locale {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	lang, country, _ := strings.Cut(s, "-")
	if lang == "" {
		lang = "en"
	}
	if country == "" {
		country = "US"
	}
	return Locale{Language: strings.ToLower(lang), Country: strings.ToUpper(country)}
}

// Tag renders the locale as language-COUNTRY.
func (l Locale) Tag() string {
	return l.Language + "-" + l.Country
}

// Region is the lowercase country code.
func (l Locale) Region() string {
	return strings.ToLower(l.Country)
}

// TimeFormat returns HH24 or HH12.
func (l Locale) TimeFormat() string {
	if l.Use24Hour {
		return "HH24"
	}
	return "HH12"
}

// OpenKind is the host action requested by applicationManager/open.
type OpenKind string

const (
	OpenView    OpenKind = "view"
	OpenDial    OpenKind = "dial"
	OpenCompose OpenKind = "compose"
)

// Opener hands URLs to the host (browser tab, dialer, mail client).
type Opener interface {
	Open(kind OpenKind, target string) error
}

// Link is the state of one connection type.
type Link struct {
	Connected bool
	Interface string
	IPAddress string
}

// NetworkStatus is a snapshot of host connectivity.
type NetworkStatus struct {
	Online bool
	Wifi   Link
	WAN    Link
	Wired  Link
	Bridge Link
}

// NetworkProbe reports current host connectivity.
type NetworkProbe interface {
	Status() (NetworkStatus, error)
}

// Env holds the host collaborators used by the built-in services.
type Env struct {
	Clock   Clock
	Locale  Locale
	Opener  Opener
	Network NetworkProbe
	Device  DeviceProfile
}

// DefaultServices builds the service table emulated by this bus.
func DefaultServices(env Env) []Service {
	if env.Clock == nil {
		env.Clock = SystemClock{}
	}
	if env.Device.ModelName == "" {
		env.Device = DefaultDeviceProfile()
	}
	return []Service{
		NewSystemService(env.Clock, env.Locale),
		NewAppManager(env.Opener),
		NewConnectionManager(env.Network),
		PreferencesService{},
		DBService{},
		AudioService{},
		PowerService{},
		NewDeviceProfileService(env.Device),
	}
}
