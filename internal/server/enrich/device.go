package enrich

import "strings"

const (
	DeviceUnknown = "unknown-device"
	DeviceOther   = "desktop-other"
)

type marker struct {
	label string
	all   []string // every keyword must be present
	none  []string // no keyword may be present
}

func (m marker) match(ua string) bool {
	for _, k := range m.all {
		if !strings.Contains(ua, k) {
			return false
		}
	}
	for _, k := range m.none {
		if strings.Contains(ua, k) {
			return false
		}
	}
	return true
}

var mobileKeywords = []string{
	"Mobile", "Android", "iPhone", "iPad", "Windows Phone", "BlackBerry", "Opera Mini", "IEMobile",
}

// Order matters: iPhone before Android before iPad, and Edge before Chrome
// before Safari because their user agents embed each other's tokens.
var (
	mobileDevices = []marker{
		{label: "mobile-iphone", all: []string{"iPhone"}},
		{label: "mobile-android", all: []string{"Android"}},
		{label: "mobile-ipad", all: []string{"iPad"}},
	}
	desktopBrowsers = []marker{
		{label: "desktop-edge", all: []string{"Edg"}},
		{label: "desktop-chrome", all: []string{"Chrome"}},
		{label: "desktop-firefox", all: []string{"Firefox"}},
		{label: "desktop-safari", all: []string{"Safari"}, none: []string{"Chrome"}},
		{label: "desktop-opera", all: []string{"Opera"}},
		{label: "desktop-ie", all: []string{"MSIE"}},
		{label: "desktop-ie", all: []string{"Trident"}},
	}
)

// Device classifies a User-Agent string into a coarse device label.
func Device(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceUnknown
	}

	if isMobile(userAgent) {
		for _, m := range mobileDevices {
			if m.match(userAgent) {
				return m.label
			}
		}
		return "mobile-other"
	}

	for _, m := range desktopBrowsers {
		if m.match(userAgent) {
			return m.label
		}
	}
	return DeviceOther
}

func isMobile(ua string) bool {
	for _, k := range mobileKeywords {
		if strings.Contains(ua, k) {
			return true
		}
	}
	return false
}
