package resource

// Client is the server-tracked record of this device's relationship with the
// backend. It carries the sessions signed in on this device plus any
// in-progress sign-up or sign-in.
type Client struct {
	ID                  string    `json:"id"`
	Object              string    `json:"object,omitempty"`
	SignUp              *SignUp   `json:"sign_up"`
	SignIn              *SignIn   `json:"sign_in"`
	Sessions            []Session `json:"sessions"`
	LastActiveSessionID string    `json:"last_active_session_id,omitempty"`
	UpdatedAt           int64     `json:"updated_at,omitempty"`
	CreatedAt           int64     `json:"created_at,omitempty"`
}

// ActiveSession returns the last active session when it is still active.
func (c *Client) ActiveSession() *Session {
	if c == nil || c.LastActiveSessionID == "" {
		return nil
	}
	for i := range c.Sessions {
		s := &c.Sessions[i]
		if s.ID == c.LastActiveSessionID && s.Status == SessionActive {
			return s
		}
	}
	return nil
}

// SignUpID returns the in-progress sign-up id, or "" when none exists.
func (c *Client) SignUpID() string {
	if c == nil || c.SignUp == nil {
		return ""
	}
	return c.SignUp.ID
}

// SignInID returns the in-progress sign-in id, or "" when none exists.
func (c *Client) SignInID() string {
	if c == nil || c.SignIn == nil {
		return ""
	}
	return c.SignIn.ID
}

// Clone returns a deep copy so callers can never alias stored snapshots.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	out := *c
	if c.SignUp != nil {
		out.SignUp = c.SignUp.clone()
	}
	if c.SignIn != nil {
		out.SignIn = c.SignIn.clone()
	}
	if c.Sessions != nil {
		out.Sessions = make([]Session, len(c.Sessions))
		for i := range c.Sessions {
			out.Sessions[i] = c.Sessions[i].clone()
		}
	}
	return &out
}

// SignUpOrNil returns the embedded sign-up, tolerating a nil Client.
func (c *Client) SignUpOrNil() *SignUp {
	if c == nil {
		return nil
	}
	return c.SignUp
}

// SignInOrNil returns the embedded sign-in, tolerating a nil Client.
func (c *Client) SignInOrNil() *SignIn {
	if c == nil {
		return nil
	}
	return c.SignIn
}
