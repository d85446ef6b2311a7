// Package useragent classifies User-Agent strings into device, browser and
// OS labels using ordered substring rules.
package useragent

import (
	"strings"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// Rule maps a predicate over a lower-cased User-Agent to a label.
type Rule struct {
	Match func(ua string) bool
	Label string
}

// Rules is evaluated top to bottom; the first match wins.
type Rules struct {
	Rules   []Rule
	Default string
}

// Classify returns the label of the first matching rule or the default.
func (r Rules) Classify(ua string) string {
	ua = strings.ToLower(ua)
	for _, rule := range r.Rules {
		if rule.Match(ua) {
			return rule.Label
		}
	}
	return r.Default
}

// contains matches if any of the markers is a substring.
func contains(markers ...string) func(string) bool {
	return func(ua string) bool {
		for _, m := range markers {
			if strings.Contains(ua, m) {
				return true
			}
		}
		return false
	}
}

// containsAll matches only if every marker is a substring.
func containsAll(markers ...string) func(string) bool {
	return func(ua string) bool {
		for _, m := range markers {
			if !strings.Contains(ua, m) {
				return false
			}
		}
		return true
	}
}

// containsWithout matches marker unless excluded is also present.
func containsWithout(marker, excluded string) func(string) bool {
	return func(ua string) bool {
		return strings.Contains(ua, marker) && !strings.Contains(ua, excluded)
	}
}

// DeviceRules classify the device class. iPad Safari carries a
// "Mobile/<build>" token, so iPad is matched before the generic mobile
// marker. The other mobile markers precede tablet markers so
// "android ... mobile" is a phone.
var DeviceRules = Rules{
	Rules: []Rule{
		{Match: containsWithout("ipad", "iphone"), Label: model.DeviceTablet},
		{Match: contains("iphone"), Label: model.DeviceMobile},
		{Match: containsAll("android", "mobile"), Label: model.DeviceMobile},
		{Match: contains("mobile"), Label: model.DeviceMobile},
		{Match: contains("windows phone"), Label: model.DeviceMobile},
		{Match: contains("tablet"), Label: model.DeviceTablet},
		{Match: contains("android"), Label: model.DeviceTablet},
	},
	Default: model.DeviceDesktop,
}

// BrowserRules classify the browser family. Chromium derivatives carry
// "chrome" and "safari" in their UA, so they must come first.
var BrowserRules = Rules{
	Rules: []Rule{
		{Match: contains("edg"), Label: "Edge"},
		{Match: contains("opr", "opera"), Label: "Opera"},
		{Match: contains("yabrowser"), Label: "Yandex"},
		{Match: contains("samsungbrowser"), Label: "Samsung Internet"},
		{Match: contains("chrome", "crios"), Label: "Chrome"},
		{Match: contains("firefox", "fxios"), Label: "Firefox"},
		{Match: contains("safari"), Label: "Safari"},
		{Match: contains("telegram"), Label: "Telegram"},
	},
	Default: "Other",
}

// OSRules classify the operating system. iOS UAs contain "mac os x", so
// iPhone/iPad are matched before macOS.
var OSRules = Rules{
	Rules: []Rule{
		{Match: contains("windows"), Label: "Windows"},
		{Match: contains("iphone", "ipad", "ios"), Label: "iOS"},
		{Match: contains("mac os", "macintosh"), Label: "macOS"},
		{Match: contains("android"), Label: "Android"},
		{Match: contains("linux"), Label: "Linux"},
	},
	Default: "Other",
}

// Info is the classification of a single User-Agent.
type Info struct {
	DeviceType string
	Browser    string
	OS         string
}

// Parse classifies ua. It never fails; unknown input maps to defaults.
func Parse(ua string) Info {
	return Info{
		DeviceType: DeviceRules.Classify(ua),
		Browser:    BrowserRules.Classify(ua),
		OS:         OSRules.Classify(ua),
	}
}
