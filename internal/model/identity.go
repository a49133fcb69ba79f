package model

// Identity providers
const (
	ProviderAnonymous = "anonymous"
	ProviderToken     = "token"
)

// Identity is the signed-in principal that owns a profile document
type Identity struct {
	UID       string `json:"uid"`
	Provider  string `json:"provider"`
	Anonymous bool   `json:"anonymous"`
}

// Same reports whether two identities refer to the same principal. Nil never matches.
func (i *Identity) Same(other *Identity) bool {
	if i == nil || other == nil {
		return false
	}
	return i.UID == other.UID
}
