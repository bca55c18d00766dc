package references

import "sort"

type Scope int

const (
	// PerUser kinds are partitioned by owner; names repeat across users.
	PerUser Scope = iota
	// Global kinds share one catalogue across all users.
	Global
)

// Kind describes one referenced entity type reachable from a form field.
type Kind struct {
	Name   string
	Table  string
	Label  string
	Scope  Scope
	MaxLen int
}

var kinds = map[string]Kind{
	"artist":     {Name: "artist", Table: "artists", Label: "Artiste", Scope: PerUser, MaxLen: 200},
	"collection": {Name: "collection", Table: "collections", Label: "Collection", Scope: PerUser, MaxLen: 200},
	"exhibition": {Name: "exhibition", Table: "exhibitions", Label: "Exposition", Scope: PerUser, MaxLen: 200},
	"tag":        {Name: "tag", Table: "tags", Label: "Mot-clé", Scope: PerUser, MaxLen: 100},
	"arttype":    {Name: "arttype", Table: "art_types", Label: "Type d'art", Scope: Global, MaxLen: 100},
	"support":    {Name: "support", Table: "supports", Label: "Support", Scope: Global, MaxLen: 100},
	"technique":  {Name: "technique", Table: "techniques", Label: "Technique", Scope: Global, MaxLen: 100},
}

func Lookup(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// MustKind panics on an unknown name; for compile-time constants only.
func MustKind(name string) Kind {
	k, ok := kinds[name]
	if !ok {
		panic("references: unknown kind " + name)
	}
	return k
}

func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ScopeFor returns the uniqueness partition for userID.
func (k Kind) ScopeFor(userID string) string {
	if k.Scope == Global {
		return ""
	}
	return userID
}
