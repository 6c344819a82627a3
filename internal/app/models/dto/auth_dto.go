package dto

// LoginRequest is the login payload. Usernames are unique per school, so the
// school code disambiguates between tenants.
type LoginRequest struct {
	SchoolCode string `json:"schoolCode" binding:"required" example:"GHS"`
	Username   string `json:"username" binding:"required" example:"jane.doe"`
	Password   string `json:"password" binding:"required" example:"School0042"`
}

// LoginResponse carries the issued token pair. PasswordChangeRequired is true
// until the user replaces the generated default password.
type LoginResponse struct {
	AccessToken            string `json:"accessToken"`
	RefreshToken           string `json:"refreshToken"`
	ExpiresIn              int    `json:"expiresIn"`
	PasswordChangeRequired bool   `json:"passwordChangeRequired"`
}

// RefreshTokenRequest redeems a refresh token for a new token pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// ChangePasswordRequest replaces the current password with a new one
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// ResetPasswordResponse carries the freshly generated default password so an
// administrator can hand it to the user
type ResetPasswordResponse struct {
	IdentityID      int64  `json:"identityId"`
	DefaultPassword string `json:"defaultPassword"`
}
