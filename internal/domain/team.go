package domain

// TeamMember is an agency employee assigned to projects through Project.TeamIDs.
// ProjectCount is derived from those assignments when served.
type TeamMember struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Email        string `json:"email,omitempty"`
	ProjectCount int    `json:"projectCount"`
	CreatedAt    int64  `json:"createdAt"`
}

// TeamMemberPatch carries a partial team member update.
type TeamMemberPatch struct {
	Name  *string `json:"name,omitempty"`
	Role  *string `json:"role,omitempty"`
	Email *string `json:"email,omitempty"`
}
