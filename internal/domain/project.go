package domain

// ============================================================
// Projects
// ============================================================

// ProjectStatus is the delivery state of a project.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "Planning"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectReview     ProjectStatus = "Review"
	ProjectCompleted  ProjectStatus = "Completed"
	ProjectDelayed    ProjectStatus = "Delayed"
)

// Valid reports whether s is one of the known project states.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectInProgress, ProjectReview, ProjectCompleted, ProjectDelayed:
		return true
	}
	return false
}

// MilestoneStatus is the state of a delivery milestone.
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "Pending"
	MilestoneInProgress MilestoneStatus = "In Progress"
	MilestoneCompleted  MilestoneStatus = "Completed"
)

// Valid reports whether s is a known milestone state.
func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneCompleted:
		return true
	}
	return false
}

// Project is a piece of work delivered for one client.
// StartDate and DueDate are calendar dates (YYYY-MM-DD), not timestamps.
type Project struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"clientId"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category,omitempty"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"`
	StartDate   string        `json:"startDate,omitempty"`
	DueDate     string        `json:"dueDate,omitempty"`
	Budget      float64       `json:"budget"`
	TeamIDs     []string      `json:"teamIds,omitempty"`
	Milestones  []Milestone   `json:"milestones,omitempty"`
	Phases      []Phase       `json:"phases,omitempty"`
	Financial   *Financial    `json:"financial,omitempty"`
	Notes       []Note        `json:"notes,omitempty"`
	Documents   []Document    `json:"documents,omitempty"`
	CreatedAt   int64         `json:"createdAt"`
	UpdatedAt   int64         `json:"updatedAt"`
}

// Milestone is a delivery checkpoint shown on the client timeline.
type Milestone struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Status        MilestoneStatus `json:"status"`
	DueDate       string          `json:"dueDate,omitempty"`
	CompletedDate string          `json:"completedDate,omitempty"`
}

// Phase is a block of the project plan.
type Phase struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	Status       string   `json:"status,omitempty"`
	Deliverables []string `json:"deliverables,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// Note is an internal or client-visible remark attached to a project.
type Note struct {
	ID        string `json:"id"`
	Category  string `json:"category,omitempty"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
	CreatedBy string `json:"createdBy,omitempty"`
}

// Document is a link to a deliverable or contract.
type Document struct {
	ID         string `json:"id"`
	Type       string `json:"type,omitempty"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	UploadedAt int64  `json:"uploadedAt"`
	UploadedBy string `json:"uploadedBy,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// ProjectPatch carries a partial project update. Financial data has its own
// write path so the balance invariant can be kept.
type ProjectPatch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Status      *ProjectStatus `json:"status,omitempty"`
	Progress    *int           `json:"progress,omitempty"`
	StartDate   *string        `json:"startDate,omitempty"`
	DueDate     *string        `json:"dueDate,omitempty"`
	Budget      *float64       `json:"budget,omitempty"`
	TeamIDs     *[]string      `json:"teamIds,omitempty"`
	Phases      *[]Phase       `json:"phases,omitempty"`
}

// ============================================================
// Financial plan (quotation)
// ============================================================

// PaymentStatus is shared by invoices and payment milestones.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentOverdue PaymentStatus = "Overdue"
)

// Valid reports whether s is a known payment state.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}

// Financial is the quotation and payment plan of a project.
// Balance is always TotalCost - TotalPaid; see aggregate.RecomputeBalance.
type Financial struct {
	TotalCost         float64            `json:"totalCost"`
	Currency          string             `json:"currency,omitempty"`
	TotalPaid         float64            `json:"totalPaid"`
	Balance           float64            `json:"balance"`
	PaymentMilestones []PaymentMilestone `json:"paymentMilestones,omitempty"`
	ApprovalStatus    ApprovalStatus     `json:"approvalStatus,omitempty"`
	ChangeRequest     string             `json:"changeRequest,omitempty"`
	ApprovedAt        int64              `json:"approvedAt,omitempty"`
	RejectedAt        int64              `json:"rejectedAt,omitempty"`
	ChangeRequestedAt int64              `json:"changeRequestedAt,omitempty"`
	CreatedAt         int64              `json:"createdAt,omitempty"`
	UpdatedAt         int64              `json:"updatedAt,omitempty"`
}

// PaymentMilestone is one instalment of the payment plan. Percentage is
// free-entry and not required to add up to 100 across milestones.
type PaymentMilestone struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Percentage float64       `json:"percentage"`
	Amount     float64       `json:"amount"`
	DueDate    string        `json:"dueDate,omitempty"`
	Status     PaymentStatus `json:"status"`
}

// FinancialInput is the admin-editable part of the financial block.
// Balance and approval fields are intentionally absent.
type FinancialInput struct {
	TotalCost         *float64            `json:"totalCost,omitempty"`
	Currency          *string             `json:"currency,omitempty"`
	TotalPaid         *float64            `json:"totalPaid,omitempty"`
	PaymentMilestones *[]PaymentMilestone `json:"paymentMilestones,omitempty"`
}
