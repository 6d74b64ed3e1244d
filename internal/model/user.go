package model

// UserRole is the portal role a user logged in with.
type UserRole string

const (
	RoleStudent       UserRole = "student"
	RoleParent        UserRole = "parent"
	RoleTeacher       UserRole = "teacher"
	RoleStaff         UserRole = "staff"
	RoleAdmin         UserRole = "admin"
	RoleHeadOfSection UserRole = "head_of_section"
	RoleHeadOfSchool  UserRole = "head_of_school"
)

// StaffTier reports whether the role belongs to school staff, which gates
// event creation and the interactive Google backend.
func (r UserRole) StaffTier() bool {
	switch r {
	case RoleTeacher, RoleStaff, RoleAdmin, RoleHeadOfSection, RoleHeadOfSchool:
		return true
	}
	return false
}

// CrossBranch reports whether the role may see events from every branch.
func (r UserRole) CrossBranch() bool {
	return r == RoleAdmin || r == RoleHeadOfSchool
}

// UserContext identifies the requesting user for source selection and
// security filtering. It is threaded explicitly through every call; there is
// no ambient session global.
type UserContext struct {
	UserID   string
	Role     UserRole
	AuthCode string
	BranchID string
}
