package reminder

import "fmt"

// Role is a capability held by a principal.
type Role string

// RoleScheduler may create, edit, cancel and delete any reminder.
const RoleScheduler Role = "scheduler"

// Principal is the acting identity of an operation. Authentication happens
// before the engine is called.
type Principal struct {
	ID    string
	Roles []Role
}

// Has reports whether p holds role.
func (p Principal) Has(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Guard makes one authorization decision per operation. The scheduler role
// controls scheduling; only the assignee controls disposition.
type Guard struct{}

func (Guard) CanCreate(p Principal) error {
	return requireScheduler(p, "create")
}

func (Guard) CanUpdateOrCancel(p Principal) error {
	return requireScheduler(p, "update or cancel")
}

func (Guard) CanDelete(p Principal) error {
	return requireScheduler(p, "delete")
}

// CanComplete allows only the assignee. The scheduler role does not bypass
// this check.
func (Guard) CanComplete(p Principal, r *Reminder) error {
	return requireAssignee(p, r, "complete")
}

func (Guard) CanAcknowledge(p Principal, r *Reminder) error {
	return requireAssignee(p, r, "acknowledge")
}

// CanView allows schedulers to read any reminder and everyone else to read
// reminders assigned to them.
func (Guard) CanView(p Principal, r *Reminder) error {
	if p.Has(RoleScheduler) {
		return nil
	}
	return requireAssignee(p, r, "view")
}

func requireScheduler(p Principal, op string) error {
	if p.ID == "" || !p.Has(RoleScheduler) {
		return fmt.Errorf("%w: %s requires the %s role", ErrUnauthorized, op, RoleScheduler)
	}
	return nil
}

func requireAssignee(p Principal, r *Reminder, op string) error {
	if p.ID == "" || r == nil || p.ID != r.AssignedTo {
		return fmt.Errorf("%w: only the assignee may %s this reminder", ErrUnauthorized, op)
	}
	return nil
}
