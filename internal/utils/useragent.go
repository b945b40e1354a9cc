package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo holds what the request logger records about the caller's device
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, unknown
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
}

var tabletMarkers = []string{"ipad", "tablet", "kindle", "sm-t", "nexus 7", "nexus 9", "nexus 10"}

// ParseUserAgent parses a User-Agent header
func ParseUserAgent(userAgent string) DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)
	name, version := parser.Browser()
	browser := name
	if version != "" {
		browser = name + " " + version
	}

	info := DeviceInfo{
		DeviceType: "desktop",
		OS:         parser.OS(),
		Browser:    browser,
		IsBot:      parser.Bot(),
	}
	if info.OS == "" {
		info.OS = "Unknown"
	}
	if parser.Mobile() {
		info.DeviceType = "mobile"
	}

	lower := strings.ToLower(userAgent)
	for _, marker := range tabletMarkers {
		if strings.Contains(lower, marker) {
			info.DeviceType = "tablet"
			break
		}
	}
	return info
}
