package extrafields

import (
	"strings"
	"unicode"
)

// labelOverrides maps known payload keys to their display labels. Entries
// here take precedence over the camel-case conversion.
var labelOverrides = map[string]string{
	"serverPlugins":      "Server plugins",
	"pluginSettingsYaml": "Plugin settings",
}

// Label converts a payload key into a human-readable label, e.g.
// "serverVersion" -> "Server version". Known keys use a fixed override.
func Label(key string) string {
	if key == "" {
		return key
	}
	if label, ok := labelOverrides[key]; ok {
		return label
	}

	var b strings.Builder
	for i, c := range key {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(c))
		case unicode.IsUpper(c):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(c))
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
