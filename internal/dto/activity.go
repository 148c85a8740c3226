package dto

// CreateActivityRequest declares a new activity to bridge.
type CreateActivityRequest struct {
	CourseID            int64  `json:"course_id" binding:"required"`
	Name                string `json:"name" binding:"required"`
	Institution         string `json:"institution"`
	SupervisorFirstName string `json:"supervisor_first_name" binding:"required"`
	SupervisorLastName  string `json:"supervisor_last_name" binding:"required"`
	SupervisorEmail     string `json:"supervisor_email" binding:"omitempty,email"`
	Lang                string `json:"lang"`
	Expiration          string `json:"expiration"`
}

// UpdateActivityRequest carries changed activity settings.
type UpdateActivityRequest struct {
	Name                string `json:"name"`
	Institution         string `json:"institution"`
	SupervisorFirstName string `json:"supervisor_first_name"`
	SupervisorLastName  string `json:"supervisor_last_name"`
	SupervisorEmail     string `json:"supervisor_email" binding:"omitempty,email"`
	Lang                string `json:"lang"`
	Expiration          string `json:"expiration"`
}

// ProvisionResponse returns the class binding created for an activity.
type ProvisionResponse struct {
	ClassID    string `json:"class_id"`
	OwnerToken string `json:"owner_token"`
}
