package mockldap

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadContent reads directory content from a fixture file (YAML, JSON, or
// TOML, chosen by extension). The file maps DN to attribute map:
//
//	cn=alice,ou=people,o=test:
//	  cn: [alice]
//	  userPassword: [alicepw]
//
// The key delimiter is "::" rather than "." so DNs pass through viper
// untouched. Keys are folded to lowercase on the way in, which is harmless
// here: DNs and attribute names are matched case-insensitively anyway.
func LoadContent(path string) (Content, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("mockldap: reading fixture %s: %w", path, err)
	}

	var content Content
	if err := v.Unmarshal(&content); err != nil {
		return nil, fmt.Errorf("mockldap: decoding fixture %s: %w", path, err)
	}

	// Validate DNs up front so a broken fixture fails at load time, not at
	// first search.
	for dn := range content {
		if _, err := NormalizeDN(dn); err != nil {
			return nil, fmt.Errorf("mockldap: fixture %s: %w", path, err)
		}
	}

	return content, nil
}
