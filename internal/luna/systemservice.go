package luna

import (
	"encoding/json"
	"fmt"
	"time"
)

const SystemServiceName = "com.palm.systemservice"

// SystemTime is the getSystemTime response.
type SystemTime struct {
	Reply
	UTC           int64  `json:"utc"`
	LocalTime     int64  `json:"localtime"`
	Offset        int    `json:"offset"`
	TimeZone      string `json:"timezone"`
	TZ            string `json:"TZ"`
	TimeZoneFile  string `json:"timeZoneFile"`
	NITZValid     bool   `json:"NITZValid"`
	NITZValidTime bool   `json:"NITZValidTime"`
	NITZValidZone bool   `json:"NITZValidZone"`
}

// NetworkTime is the getSystemNetworkTime response.
type NetworkTime struct {
	Reply
	UTC       int64 `json:"utc"`
	LocalTime int64 `json:"localtime"`
	Offset    int   `json:"offset"`
}

// TimeZoneInfo is the getTimeZoneFromEasData response.
type TimeZoneInfo struct {
	Reply
	TimeZone string `json:"timezone"`
	Offset   int    `json:"offset"`
}

// Preferences flattens requested keys next to returnValue.
type Preferences struct {
	Reply
	Values map[string]string
}

func (p Preferences) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Values)+3)
	for k, v := range p.Values {
		out[k] = v
	}
	out["returnValue"] = p.ReturnValue
	if p.ErrorCode != 0 {
		out["errorCode"] = p.ErrorCode
	}
	if p.ErrorText != "" {
		out["errorText"] = p.ErrorText
	}
	return json.Marshal(out)
}

type preferencesRequest struct {
	Keys []string `json:"keys"`
	Key  string   `json:"key"`
}

// SystemService answers time and system preference queries from the host
// clock and locale.
type SystemService struct {
	clock  Clock
	locale Locale
	table  MethodTable
}

func NewSystemService(clock Clock, locale Locale) *SystemService {
	if clock == nil {
		clock = SystemClock{}
	}
	if locale.Language == "" {
		locale = ParseLocale("")
	}
	s := &SystemService{clock: clock, locale: locale}
	s.table.
		On("getSystemTime", AnyOf(Contains("time/getSystemTime"), Exact("getSystemTime")), s.systemTime).
		On("getSystemNetworkTime", Contains("time/getSystemNetworkTime"), s.networkTime).
		On("getPreferences", Contains("getPreferences"), s.preferences).
		On("getPreferenceValues", Contains("getPreferenceValues"), s.preferences).
		On("setPreferences", Contains("setPreferences"), s.setPreferences).
		On("getTimeZoneFromEasData", Contains("timezone/getTimeZoneFromEasData"), s.timeZone)
	return s
}

func (s *SystemService) Name() string { return SystemServiceName }

func (s *SystemService) Handle(method string, p Params) (any, error) {
	return s.table.Dispatch(method, p)
}

// clockReading returns utc seconds, the zone offset in seconds and the zone.
func (s *SystemService) clockReading() (int64, int, time.Time) {
	now := s.clock.Now()
	_, offset := now.Zone()
	return now.Unix(), offset, now
}

func (s *SystemService) systemTime(string, Params) (any, error) {
	utc, offset, now := s.clockReading()
	zone := ZoneName(now.Location())
	abbr, _ := now.Zone()
	return SystemTime{
		Reply:        OK(),
		UTC:          utc,
		LocalTime:    utc + int64(offset),
		Offset:       offset / 60,
		TimeZone:     zone,
		TZ:           abbr,
		TimeZoneFile: "/usr/share/zoneinfo/" + zone,
	}, nil
}

func (s *SystemService) networkTime(string, Params) (any, error) {
	utc, offset, _ := s.clockReading()
	return NetworkTime{Reply: OK(), UTC: utc, LocalTime: utc + int64(offset), Offset: offset / 60}, nil
}

func (s *SystemService) timeZone(string, Params) (any, error) {
	_, offset, now := s.clockReading()
	return TimeZoneInfo{Reply: OK(), TimeZone: ZoneName(now.Location()), Offset: offset / 60}, nil
}

func (s *SystemService) preferences(_ string, p Params) (any, error) {
	var req preferencesRequest
	if err := p.Decode(&req); err != nil {
		return nil, fmt.Errorf("getPreferences: keys must be an array of strings: %w", err)
	}
	keys := req.Keys
	if len(keys) == 0 && req.Key != "" {
		keys = []string{req.Key}
	}
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		values[key] = s.preferenceValue(key)
	}
	return Preferences{Reply: OK(), Values: values}, nil
}

// preferenceValue returns the fixed default for key. Unknown keys, ringtone
// and wallpaper are empty.
func (s *SystemService) preferenceValue(key string) string {
	switch key {
	case "locale":
		return s.locale.Tag()
	case "region":
		return s.locale.Region()
	case "timeFormat":
		return s.locale.TimeFormat()
	case "timeZone":
		return ZoneName(s.clock.Now().Location())
	default:
		return ""
	}
}

func (s *SystemService) setPreferences(string, Params) (any, error) {
	return OK(), nil
}
