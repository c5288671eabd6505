package resource

type User struct {
	ID                    string            `json:"id"`
	Username              string            `json:"username,omitempty"`
	FirstName             string            `json:"first_name,omitempty"`
	LastName              string            `json:"last_name,omitempty"`
	ImageURL              string            `json:"image_url,omitempty"`
	PrimaryEmailAddressID string            `json:"primary_email_address_id,omitempty"`
	PrimaryPhoneNumberID  string            `json:"primary_phone_number_id,omitempty"`
	PasswordEnabled       bool              `json:"password_enabled"`
	TwoFactorEnabled      bool              `json:"two_factor_enabled"`
	EmailAddresses        []EmailAddress    `json:"email_addresses,omitempty"`
	PhoneNumbers          []PhoneNumber     `json:"phone_numbers,omitempty"`
	ExternalAccounts      []ExternalAccount `json:"external_accounts,omitempty"`
	CreatedAt             int64             `json:"created_at,omitempty"`
	UpdatedAt             int64             `json:"updated_at,omitempty"`
}

type EmailAddress struct {
	ID           string        `json:"id"`
	EmailAddress string        `json:"email_address"`
	Verification *Verification `json:"verification,omitempty"`
}

type PhoneNumber struct {
	ID           string        `json:"id"`
	PhoneNumber  string        `json:"phone_number"`
	Verification *Verification `json:"verification,omitempty"`
}

type ExternalAccount struct {
	ID               string        `json:"id"`
	Provider         string        `json:"provider"`
	ProviderUserID   string        `json:"provider_user_id,omitempty"`
	EmailAddress     string        `json:"email_address,omitempty"`
	ApprovedScopes   string        `json:"approved_scopes,omitempty"`
	Verification     *Verification `json:"verification,omitempty"`
	IdentificationID string        `json:"identification_id,omitempty"`
}

// PrimaryEmailAddress returns the email address referenced by
// PrimaryEmailAddressID, or nil.
func (u *User) PrimaryEmailAddress() *EmailAddress {
	if u == nil {
		return nil
	}
	for i := range u.EmailAddresses {
		if u.EmailAddresses[i].ID == u.PrimaryEmailAddressID {
			return &u.EmailAddresses[i]
		}
	}
	return nil
}

func (u User) clone() User {
	out := u
	if u.EmailAddresses != nil {
		out.EmailAddresses = make([]EmailAddress, len(u.EmailAddresses))
		for i, e := range u.EmailAddresses {
			e.Verification = e.Verification.clone()
			out.EmailAddresses[i] = e
		}
	}
	if u.PhoneNumbers != nil {
		out.PhoneNumbers = make([]PhoneNumber, len(u.PhoneNumbers))
		for i, p := range u.PhoneNumbers {
			p.Verification = p.Verification.clone()
			out.PhoneNumbers[i] = p
		}
	}
	if u.ExternalAccounts != nil {
		out.ExternalAccounts = make([]ExternalAccount, len(u.ExternalAccounts))
		for i, a := range u.ExternalAccounts {
			a.Verification = a.Verification.clone()
			out.ExternalAccounts[i] = a
		}
	}
	return out
}
