package resource

// VerificationStatus is the backend-reported state of a single verification.
type VerificationStatus string

const (
	VerificationUnverified   VerificationStatus = "unverified"
	VerificationVerified     VerificationStatus = "verified"
	VerificationTransferable VerificationStatus = "transferable"
	VerificationFailed       VerificationStatus = "failed"
	VerificationExpired      VerificationStatus = "expired"
)

// Verification tracks one in-flight verification. Strategy stays a raw tag
// because the backend may report strategies this SDK does not model.
type Verification struct {
	Status                          VerificationStatus `json:"status"`
	Strategy                        string             `json:"strategy,omitempty"`
	Attempts                        int                `json:"attempts,omitempty"`
	ExpireAt                        int64              `json:"expire_at,omitempty"`
	ExternalVerificationRedirectURL string             `json:"external_verification_redirect_url,omitempty"`
	Error                           *Error             `json:"error,omitempty"`
}

// Verified reports whether the verification completed successfully.
func (v *Verification) Verified() bool {
	return v != nil && v.Status == VerificationVerified
}

func (v *Verification) clone() *Verification {
	if v == nil {
		return nil
	}
	out := *v
	if v.Error != nil {
		e := v.Error.clone()
		out.Error = &e
	}
	return &out
}
