package models

// PasswordPayload is the decrypted payload of a record in the passwords
// collection, or a tombstone when Deleted is set. Time fields are
// milliseconds since the Unix epoch.
type PasswordPayload struct {
	ID                  string `json:"id"`
	Deleted             bool   `json:"deleted,omitempty"`
	Hostname            string `json:"hostname,omitempty"`
	FormSubmitURL       string `json:"formSubmitURL,omitempty"`
	HTTPRealm           string `json:"httpRealm,omitempty"`
	Username            string `json:"username,omitempty"`
	Password            string `json:"password,omitempty"`
	UsernameField       string `json:"usernameField,omitempty"`
	PasswordField       string `json:"passwordField,omitempty"`
	TimeCreated         int64  `json:"timeCreated,omitempty"`
	TimePasswordChanged int64  `json:"timePasswordChanged,omitempty"`
}

// PasswordItem is a saved-credential row in the local store.
type PasswordItem struct {
	GUID                string
	Hostname            string
	FormSubmitURL       string
	HTTPRealm           string
	Username            string
	Password            string
	UsernameField       string
	PasswordField       string
	TimeCreated         int64
	TimePasswordChanged int64
	Modified            float64
	Deleted             bool
}
