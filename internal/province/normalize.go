// Package province canonicalizes free-text Chinese province names into the
// join key shared by every table.
package province

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

// suffixes are administrative-level suffixes stripped from the end of a name.
var suffixes = []string{"省", "市"}

// defaultAliases maps full official names to the short canonical form.
var defaultAliases = map[string]string{
	"内蒙古自治区":   "内蒙古",
	"广西壮族自治区":  "广西",
	"广西自治区":    "广西",
	"西藏自治区":    "西藏",
	"宁夏回族自治区":  "宁夏",
	"宁夏自治区":    "宁夏",
	"新疆维吾尔自治区": "新疆",
	"新疆自治区":    "新疆",
	"香港特别行政区":  "香港",
	"澳门特别行政区":  "澳门",
}

// Normalizer maps raw province strings to canonical keys. It is immutable
// after construction and safe for concurrent use.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a Normalizer from the default alias map plus extra.
// Entries in extra override defaults. Every alias target must already be
// canonical, which keeps Normalize idempotent.
func NewNormalizer(extra map[string]string) (*Normalizer, error) {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[clean(k)] = v
	}

	n := &Normalizer{aliases: aliases}
	for k, v := range aliases {
		if v == "" {
			return nil, eris.Errorf("province: alias %q has an empty target", k)
		}
		if got := n.Normalize(v); got != v {
			return nil, eris.Errorf("province: alias target %q for %q is not canonical (normalizes to %q)", v, k, got)
		}
	}
	return n, nil
}

// Default returns a Normalizer with only the built-in aliases.
func Default() *Normalizer {
	n, err := NewNormalizer(nil)
	if err != nil {
		panic(err)
	}
	return n
}

// Normalize returns the canonical key for s: width-folded, trimmed,
// stripped of trailing 省/市 and resolved through the alias map.
func (n *Normalizer) Normalize(s string) string {
	s = clean(s)
	if v, ok := n.aliases[s]; ok {
		return v
	}
	s = stripSuffixes(s)
	if v, ok := n.aliases[s]; ok {
		return v
	}
	return s
}

// clean folds full-width forms and compatibility characters, then trims.
func clean(s string) string {
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)
	return strings.TrimSpace(s)
}

func stripSuffixes(s string) string {
	for {
		trimmed := s
		for _, suf := range suffixes {
			trimmed = strings.TrimSuffix(trimmed, suf)
		}
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// aliasFile is the on-disk shape of an alias override file.
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliasFile reads extra aliases from a YAML document of the form
//
//	aliases:
//	  内蒙古自治区: 内蒙古
func LoadAliasFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "province: read alias file %s", path)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "province: parse alias file %s", path)
	}
	return f.Aliases, nil
}
