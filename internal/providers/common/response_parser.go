package common

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// UnwrapCodeFence strips a surrounding markdown code fence, if any.
func UnwrapCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

// ParseJSONOrDefault unwraps a code fence and decodes raw into T.
// It returns the zero value and false when the payload is not valid JSON.
func ParseJSONOrDefault[T any](raw string) (T, bool) {
	var v T
	if err := json.Unmarshal([]byte(UnwrapCodeFence(raw)), &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}
