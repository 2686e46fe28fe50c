package dto

// UpdateProfileRequest is a self-service profile edit. Absent fields stay
// untouched.
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	PhotoURL *string `json:"photoUrl"`
}

// ChangePasswordRequest verifies the current password before the change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
