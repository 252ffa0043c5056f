package redis

import "strings"

func expandChannel(pattern, deviceID string) string {
	if deviceID == "" {
		deviceID = "unknown"
	}
	return strings.ReplaceAll(pattern, "{device}", deviceID)
}
