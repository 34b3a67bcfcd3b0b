package strutil

import "encoding/json"

// JSON marshals given interface and returns the string representation. It
// swallows marshalling errors; log messages are best-effort.
func JSON(v interface{}) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}
