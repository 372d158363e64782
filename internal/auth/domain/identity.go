package domain

// Identity is the provider-agnostic tuple the sync core consumes. The
// subject id is stable per provider account and doubles as the storage
// namespace for the user's tasks and points.
//
// The JSON field names match the identity record the widget has always
// cached locally, so pre-existing cached identities keep loading.
type Identity struct {
	SubjectID         string  `json:"sub"`
	Email             string  `json:"email"`
	DisplayName       string  `json:"name"`
	AvatarURL         string  `json:"picture"`
	CustomDisplayName *string `json:"customName"`
	CustomAvatarURL   *string `json:"customPicture"`
}

// EffectiveDisplayName prefers the user's custom override when set.
func (i *Identity) EffectiveDisplayName() string {
	if i.CustomDisplayName != nil && *i.CustomDisplayName != "" {
		return *i.CustomDisplayName
	}
	return i.DisplayName
}

// EffectiveAvatarURL prefers the user's custom override when set.
func (i *Identity) EffectiveAvatarURL() string {
	if i.CustomAvatarURL != nil && *i.CustomAvatarURL != "" {
		return *i.CustomAvatarURL
	}
	return i.AvatarURL
}

// Clone returns an independent copy.
func (i *Identity) Clone() *Identity {
	c := *i
	if i.CustomDisplayName != nil {
		v := *i.CustomDisplayName
		c.CustomDisplayName = &v
	}
	if i.CustomAvatarURL != nil {
		v := *i.CustomAvatarURL
		c.CustomAvatarURL = &v
	}
	return &c
}
