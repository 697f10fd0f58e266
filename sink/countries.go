package sink

import (
	_ "embed"
	"encoding/json"
	"sync"
)

//go:embed countries.json
var countriesJSON []byte

var countryTable = sync.OnceValue(func() map[string]string {
	var table map[string]string
	if err := json.Unmarshal(countriesJSON, &table); err != nil {
		// The table is embedded at build time; a parse failure is a
		// packaging bug, not a runtime condition.
		panic("sink: invalid embedded countries.json: " + err.Error())
	}
	return table
})

// transformCountryCode maps a country code to the name the API expects.
// Unknown codes pass through verbatim; a lookup miss is not an error.
func transformCountryCode(code string) string {
	if code == "" {
		return ""
	}
	if name, ok := countryTable()[code]; ok {
		return name
	}
	return code
}
