package models

// Role represents the role of an authenticated user
type Role int

const (
	RoleStudent Role = 1
	RoleTutor   Role = 2
	RoleAdmin   Role = 3
)

// Identity is the already-authenticated caller of a core operation
type Identity struct {
	StudentID int  `json:"studentId"`
	Role      Role `json:"role"`
}

// StudentContact holds the data needed to notify a student
type StudentContact struct {
	StudentID      int    `json:"studentId"`
	OrganizationID int    `json:"organizationId"`
	Email          string `json:"email"`
	FullName       string `json:"fullName"`
}
