package dto

type RegisterDTO struct {
	Username   string `json:"username"    validate:"required,alphanum,min=3,max=30"`
	Email      string `json:"email"       validate:"required,email"`
	FullName   string `json:"fullname"    validate:"required,max=100"`
	Password   string `json:"password"    validate:"required,strongpwd"`
	Avatar     string `json:"avatar"      validate:"omitempty,url"`
	CoverImage string `json:"cover_image" validate:"omitempty,url"`
}

// LoginDTO accepts either a username or an email as the identifier.
type LoginDTO struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"   validate:"required"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	AccessToken  string `json:"access_token"`
}

type ValidateDTO struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type LogoutDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	AccessToken  string `json:"access_token"`
}

type ChangePasswordDTO struct {
	UserID          string `json:"-"                validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,strongpwd,nefield=CurrentPassword"`
}

// UpdateProfileDTO leaves fields that are nil unchanged.
type UpdateProfileDTO struct {
	UserID     string  `json:"-"           validate:"required"`
	FullName   *string `json:"fullname"    validate:"omitempty,min=1,max=100"`
	Avatar     *string `json:"avatar"      validate:"omitempty,url"`
	CoverImage *string `json:"cover_image" validate:"omitempty,url"`
}

type WatchDTO struct {
	UserID  string `json:"-"        validate:"required"`
	VideoID string `json:"video_id" validate:"required,max=64"`
}
