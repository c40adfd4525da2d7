package domain

import "fmt"

// ApprovalStatus is the client's decision on a project's payment plan.
// An empty value is treated as pending.
type ApprovalStatus string

const (
	ApprovalPending         ApprovalStatus = "pending"
	ApprovalApproved        ApprovalStatus = "approved"
	ApprovalRejected        ApprovalStatus = "rejected"
	ApprovalChangeRequested ApprovalStatus = "change_requested"
)

// Normalized maps the absent status to pending.
func (s ApprovalStatus) Normalized() ApprovalStatus {
	if s == "" {
		return ApprovalPending
	}
	return s
}

// IsTerminal reports whether no further client decision is accepted.
func (s ApprovalStatus) IsTerminal() bool {
	return s.Normalized() != ApprovalPending
}

// ApprovalAction is a client decision on the payment plan.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// NextApprovalStatus applies a client decision. Only pending plans move;
// rejecting with feedback becomes a change request, without feedback a
// plain rejection.
func NextApprovalStatus(current ApprovalStatus, action ApprovalAction, feedback string) (ApprovalStatus, error) {
	if current.IsTerminal() {
		return current, &ErrConflict{Message: fmt.Sprintf("payment plan already %s", current)}
	}
	switch action {
	case ActionApprove:
		return ApprovalApproved, nil
	case ActionReject:
		if feedback != "" {
			return ApprovalChangeRequested, nil
		}
		return ApprovalRejected, nil
	}
	return current, &ErrValidation{Field: "action", Message: fmt.Sprintf("unknown approval action %q", action)}
}
