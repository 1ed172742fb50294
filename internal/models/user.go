package models

// Tables read by the pipeline for lookups and assignments.
const (
	TableUsers           = "users"
	TableTaskAssignments = "task_assignments"
)

// User roles.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleRecruiter = "recruiter"
	RoleEmployee  = "employee"
)

// User is a staff member referenced by a submission (manager, recruiter).
type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	TeamID   string `json:"team_id,omitempty"`
}

// TaskAssignment is a task a manager assigns to a new hire.
type TaskAssignment struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	AssignedBy   string `json:"assigned_by"`
	DueDate      string `json:"due_date,omitempty"`
	CreatedAt    string `json:"created_at"`
}
