package models

// UserProfile is the single mutable user-details record. It is a slot,
// not a queue: mutations overwrite fields and raise the dirty flag held
// by the QueueStore.
type UserProfile struct {
	Name         string            `json:"name,omitempty"`
	Username     string            `json:"username,omitempty"`
	Email        string            `json:"email,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Picture      string            `json:"picture,omitempty"`
	Gender       string            `json:"gender,omitempty"`
	BirthYear    int               `json:"byear,omitempty"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// IsEmpty reports whether every profile field is unset.
func (p *UserProfile) IsEmpty() bool {
	return p.Name == "" && p.Username == "" && p.Email == "" &&
		p.Organization == "" && p.Phone == "" && p.Picture == "" &&
		p.Gender == "" && p.BirthYear == 0 && len(p.Custom) == 0
}
