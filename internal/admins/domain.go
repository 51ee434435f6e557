package admins

import "time"

// SchoolAdmin is an administrative identity scoped to one school.
// Platform operators live in the same table with a null school and the
// platform flag set; they are never subject to grant evaluation.
type SchoolAdmin struct {
	ID         string    `json:"id"`
	SchoolID   string    `json:"schoolId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsPlatform bool      `json:"isPlatform"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
