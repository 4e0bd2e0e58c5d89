package luna

import (
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestGetSystemTimeOffsetMatchesLocalTime(t *testing.T) {
	zones := []string{"UTC", "America/New_York", "Asia/Kolkata", "Australia/Adelaide", "Pacific/Chatham"}
	for _, name := range zones {
		t.Run(name, func(t *testing.T) {
			loc, err := time.LoadLocation(name)
			if err != nil {
				t.Skipf("zone %s unavailable: %v", name, err)
			}
			clock := fixedClock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC).In(loc)}
			r := NewRouter(NewSystemService(clock, ParseLocale("en_US")))

			out := decode(t, r.Route("palm://com.palm.systemservice/time/getSystemTime", "{}"))
			utc := int64(out["utc"].(float64))
			local := int64(out["localtime"].(float64))
			offset := int64(out["offset"].(float64))
			if offset*60 != local-utc {
				t.Fatalf("offset = %d min; localtime-utc = %d s", offset, local-utc)
			}
			if out["timezone"] != name {
				t.Fatalf("timezone = %v; want %s", out["timezone"], name)
			}
			if utc != clock.t.Unix() {
				t.Fatalf("utc = %d; want %d", utc, clock.t.Unix())
			}
		})
	}
}

func TestGetSystemTimeMatchesBareName(t *testing.T) {
	r := NewRouter(NewSystemService(fixedClock{t: time.Unix(100, 0).UTC()}, Locale{}))
	out := decode(t, r.Route("palm://com.palm.systemservice/getSystemTime", ""))
	if out["utc"] != float64(100) {
		t.Fatalf("utc = %v; want 100", out["utc"])
	}
}

func TestGetPreferencesDefaults(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone unavailable: %v", err)
	}
	locale := ParseLocale("de_DE")
	locale.Use24Hour = true
	r := NewRouter(NewSystemService(fixedClock{t: time.Now().In(loc)}, locale))

	out := decode(t, r.Route("palm://com.palm.systemservice/getPreferences",
		`{"keys":["locale","bogusKey","region","timeFormat","timeZone","ringtone","wallpaper"]}`))

	want := map[string]string{
		"locale":     "de-DE",
		"bogusKey":   "",
		"region":     "de",
		"timeFormat": "HH24",
		"timeZone":   "Europe/Berlin",
		"ringtone":   "",
		"wallpaper":  "",
	}
	for k, v := range want {
		got, ok := out[k]
		if !ok {
			t.Fatalf("key %s missing from %v", k, out)
		}
		if got != v {
			t.Fatalf("%s = %v; want %q", k, got, v)
		}
	}
	if out["returnValue"] != true {
		t.Fatalf("returnValue = %v", out["returnValue"])
	}
}

func TestGetPreferencesLocaleNonEmpty(t *testing.T) {
	r := NewRouter(NewSystemService(nil, Locale{}))
	out := decode(t, r.Route("palm://com.palm.systemservice/getPreferences", `{"keys":["locale","bogusKey"]}`))
	if out["locale"] == "" {
		t.Fatalf("locale is empty")
	}
	if out["bogusKey"] != "" {
		t.Fatalf("bogusKey = %v; want empty string", out["bogusKey"])
	}
}

func TestGetPreferencesSingleKey(t *testing.T) {
	locale := ParseLocale("en_GB")
	locale.Use24Hour = true
	r := NewRouter(NewSystemService(nil, locale))
	out := decode(t, r.Route("palm://com.palm.systemservice/getPreferences", `{"key":"timeFormat"}`))
	if got, want := out["timeFormat"], "HH24"; got != want {
		t.Fatalf("timeFormat = %v; want %q", got, want)
	}
	if _, ok := out["locale"]; ok {
		t.Fatalf("unrequested key returned: %v", out)
	}
}

func TestGetPreferencesBadKeys(t *testing.T) {
	r := NewRouter(NewSystemService(nil, Locale{}))
	out := decode(t, r.Route("palm://com.palm.systemservice/getPreferences", `{"keys":[1,2]}`))
	if out["returnValue"] != false {
		t.Fatalf("returnValue = %v; want false", out["returnValue"])
	}
}

func TestSetPreferencesIsAccepted(t *testing.T) {
	r := NewRouter(NewSystemService(nil, Locale{}))
	out := decode(t, r.Route("palm://com.palm.systemservice/setPreferences", `{"locale":"fr-fr"}`))
	if out["returnValue"] != true {
		t.Fatalf("setPreferences = %v", out)
	}
	out = decode(t, r.Route("palm://com.palm.systemservice/getPreferences", `{"keys":["locale"]}`))
	if out["locale"] == "fr-fr" {
		t.Fatalf("setPreferences persisted a value")
	}
}

func TestParseLocale(t *testing.T) {
	tests := map[string]string{
		"en_US": "en-US",
		"fr-ca": "fr-CA",
		"":      "en-US",
		"de":    "de-US",
	}
	for in, want := range tests {
		if got := ParseLocale(in).Tag(); got != want {
			t.Fatalf("ParseLocale(%q).Tag() = %q; want %q", in, got, want)
		}
	}
}
