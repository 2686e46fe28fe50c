package dto

// CreateUserRequest is the admin payload for creating an account. When
// Password is empty the server generates one and returns it once.
type CreateUserRequest struct {
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	Password              string `json:"password"`
	IsAdmin               bool   `json:"isAdmin"`
	SkipEmailConfirmation bool   `json:"skipEmailConfirmation"`
}

// UpdateUserRequest is a partial admin update. Absent fields stay untouched.
type UpdateUserRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	IsAdmin        *bool   `json:"isAdmin"`
	EmailConfirmed *bool   `json:"emailConfirmed"`
}

// CreatedUserResponse is the create result, carrying the generated password
// when the admin did not supply one.
type CreatedUserResponse struct {
	User              UserResponse `json:"user"`
	GeneratedPassword string       `json:"generatedPassword,omitempty"`
}
