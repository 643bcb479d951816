package model

// User is the account a patient record is owned by.
type User struct {
	Base
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Phone string `db:"phone" json:"phone"`
}

// CallerIdentity is the authenticated user supplying form defaults and the
// ownership reference of a new patient.
type CallerIdentity struct {
	ID    string `json:"id" mapstructure:"id"`
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email" mapstructure:"email"`
	Phone string `json:"phone" mapstructure:"phone"`
}

// Identity returns the caller identity view of the user.
func (u *User) Identity() CallerIdentity {
	return CallerIdentity{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
	}
}

type CreateUserRequest struct {
	Name  string `json:"name" binding:"required,min=2,max=50"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required,phone"`
}

// CreateUserResponse is returned by the user creation endpoint.
type CreateUserResponse struct {
	User    *User  `json:"user"`
	Token   string `json:"token"`
	Created bool   `json:"created"`
}
