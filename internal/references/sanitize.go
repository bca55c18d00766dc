package references

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	namePolicy     *bluemonday.Policy
	namePolicyOnce sync.Once
)

func policy() *bluemonday.Policy {
	namePolicyOnce.Do(func() {
		namePolicy = bluemonday.StrictPolicy()
	})
	return namePolicy
}

// CleanName strips markup and surrounding whitespace. Entities escaped by
// the policy are decoded again so "Gilbert & George" survives intact.
func CleanName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = html.UnescapeString(policy().Sanitize(s))
	return strings.TrimSpace(s)
}

// NameKey is the case-insensitive matching key stored next to the name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
