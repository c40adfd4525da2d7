package domain

// Invoice bills a client for work on one of their projects.
type Invoice struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"clientId"`
	ProjectID   string        `json:"projectId"`
	Amount      float64       `json:"amount"`
	Status      PaymentStatus `json:"status"`
	IssuedDate  string        `json:"issuedDate,omitempty"`
	DueDate     string        `json:"dueDate,omitempty"`
	Description string        `json:"description,omitempty"`
	PaidAt      int64         `json:"paidAt,omitempty"`
	CreatedAt   int64         `json:"createdAt"`
}
