package domain

// Request bodies accepted by the HTTP API.

// CreateClientRequest onboards a client.
type CreateClientRequest struct {
	Name        string       `json:"name"`
	CompanyName string       `json:"companyName"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	AccessCode  string       `json:"accessCode"`
	Status      ClientStatus `json:"status"`
}

// DeleteClientRequest must echo the client's name.
type DeleteClientRequest struct {
	ConfirmName string `json:"confirmName"`
}

// CreateProjectRequest creates a project for an existing client.
type CreateProjectRequest struct {
	ClientID    string          `json:"clientId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Status      ProjectStatus   `json:"status"`
	Progress    int             `json:"progress"`
	StartDate   string          `json:"startDate"`
	DueDate     string          `json:"dueDate"`
	Budget      float64         `json:"budget"`
	TeamIDs     []string        `json:"teamIds"`
	Milestones  []Milestone     `json:"milestones"`
	Phases      []Phase         `json:"phases"`
	Financial   *FinancialInput `json:"financial"`
}

// NoteRequest adds a note to a project.
type NoteRequest struct {
	Category string `json:"category"`
	Content  string `json:"content"`
}

// MilestoneRequest adds a milestone to a project.
type MilestoneRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      MilestoneStatus `json:"status"`
	DueDate     string          `json:"dueDate"`
}

// MilestonePatch updates a milestone. Nil fields are untouched.
type MilestonePatch struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Status      *MilestoneStatus `json:"status,omitempty"`
	DueDate     *string          `json:"dueDate,omitempty"`
}

// DocumentRequest links a document to a project.
type DocumentRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// CreateInvoiceRequest bills a client for one of their projects.
type CreateInvoiceRequest struct {
	ClientID    string        `json:"clientId"`
	ProjectID   string        `json:"projectId"`
	Amount      float64       `json:"amount"`
	Status      PaymentStatus `json:"status"`
	IssuedDate  string        `json:"issuedDate"`
	DueDate     string        `json:"dueDate"`
	Description string        `json:"description"`
}

// InvoiceStatusRequest sets an invoice status.
type InvoiceStatusRequest struct {
	Status PaymentStatus `json:"status"`
}

// CreateTeamMemberRequest adds a team member.
type CreateTeamMemberRequest struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// ApprovalRequest is a client decision on a payment plan.
type ApprovalRequest struct {
	Action   ApprovalAction `json:"action"`
	Feedback string         `json:"feedback"`
}

// AccessCodeLoginRequest logs a client in.
type AccessCodeLoginRequest struct {
	AccessCode string `json:"accessCode"`
}

// AdminLoginRequest logs the admin in.
type AdminLoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	Token      string `json:"token"`
	ExpiresIn  int    `json:"expiresIn"`
	Role       string `json:"role"`
	ClientID   string `json:"clientId,omitempty"`
	ClientName string `json:"clientName,omitempty"`
}

// UnreadCountResponse is the notification badge payload.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many notifications were flipped.
type MarkAllReadResponse struct {
	Marked int `json:"marked"`
}
