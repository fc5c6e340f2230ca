// Package authz is the marketplace authorization policy: a pure predicate
// over the acting principal, the requested action, and that action's
// target. It performs no I/O and has no side effects; every mutating
// operation consults it before touching state.
package authz

import (
	"fmt"

	"github.com/stagepass/backend/internal/models"
)

type Action string

const (
	ActionCreateStaff      Action = "create-staff"
	ActionToggleAccount    Action = "toggle-account"
	ActionDeleteAccount    Action = "delete-account"
	ActionCreateEvent      Action = "create-event"
	ActionAcquireWholesale Action = "acquire-wholesale"
	ActionListForResale    Action = "list-for-resale"
	ActionPurchase         Action = "purchase"
	ActionWithdraw         Action = "withdraw"
)

// Reason codes carried by denials. These are stable identifiers: handlers
// and clients match on them, so they never change meaning.
const (
	ReasonRoleForbidden    = "role_forbidden"
	ReasonBadStaffRole     = "bad_staff_role"
	ReasonOutsideHierarchy = "outside_hierarchy"
	ReasonPriceAboveCap    = "price_above_cap"
	ReasonInactiveActor    = "inactive_actor"
)

// Denial is a policy refusal. It satisfies error so callers can surface it
// directly as a permission failure without partial effects.
type Denial struct {
	Action Action
	Reason string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("permission denied: %s (%s)", d.Action, d.Reason)
}

func deny(action Action, reason string) *Denial {
	return &Denial{Action: action, Reason: reason}
}

// permitted is the closed per-role action set. Contextual rules (hierarchy
// checks, price ceilings) are layered on top in Authorize.
var permitted = map[models.Role]map[Action]bool{
	models.RoleAdmin: {
		ActionCreateStaff:   true,
		ActionToggleAccount: true,
		ActionDeleteAccount: true,
		ActionListForResale: true,
		ActionPurchase:      true,
	},
	models.RoleOrganizer: {
		ActionCreateStaff:   true,
		ActionToggleAccount: true,
		ActionDeleteAccount: true,
		ActionCreateEvent:   true,
		ActionListForResale: true,
		ActionWithdraw:      true,
		ActionPurchase:      true,
	},
	models.RoleReseller: {
		ActionAcquireWholesale: true,
		ActionListForResale:    true,
		ActionPurchase:         true,
	},
	models.RoleCustomer: {
		ActionListForResale: true,
		ActionPurchase:      true,
	},
}

// Request describes one policy question. Target fields are set per action:
// StaffRole for create-staff, TargetAccount for toggle/delete, Event for
// acquire-wholesale and list-for-resale, PriceCents for list-for-resale.
type Request struct {
	Actor  *models.Account
	Action Action

	StaffRole     models.Role
	TargetAccount *models.Account
	Event         *models.Event
	PriceCents    int64
}

// Authorize returns nil when the request is permitted, or a *Denial with a
// stable reason code.
func Authorize(req Request) error {
	actor := req.Actor
	if actor == nil || !actor.IsActive {
		return deny(req.Action, ReasonInactiveActor)
	}
	if !permitted[actor.Role][req.Action] {
		return deny(req.Action, ReasonRoleForbidden)
	}

	switch req.Action {
	case ActionCreateStaff:
		child, ok := staffChild(actor.Role)
		if !ok || req.StaffRole != child {
			return deny(req.Action, ReasonBadStaffRole)
		}
	case ActionToggleAccount, ActionDeleteAccount:
		if !managesAccount(actor, req.TargetAccount) {
			return deny(req.Action, ReasonOutsideHierarchy)
		}
	case ActionAcquireWholesale:
		// A reseller may only buy stock issued by its own parent organizer.
		if actor.ParentAddress == nil || req.Event == nil ||
			req.Event.OrganizerAddress != *actor.ParentAddress {
			return deny(req.Action, ReasonOutsideHierarchy)
		}
	case ActionListForResale:
		if req.Event == nil || req.PriceCents > req.Event.MaxResaleCents {
			return deny(req.Action, ReasonPriceAboveCap)
		}
	}
	return nil
}

// staffChild returns the role a given role is allowed to create.
func staffChild(r models.Role) (models.Role, bool) {
	switch r {
	case models.RoleAdmin:
		return models.RoleOrganizer, true
	case models.RoleOrganizer:
		return models.RoleReseller, true
	}
	return "", false
}

// managesAccount reports whether actor supervises target: admins manage
// organizers; an organizer manages only resellers it created itself.
func managesAccount(actor, target *models.Account) bool {
	if target == nil {
		return false
	}
	switch actor.Role {
	case models.RoleAdmin:
		return target.Role == models.RoleOrganizer
	case models.RoleOrganizer:
		return target.Role == models.RoleReseller &&
			target.ParentAddress != nil && *target.ParentAddress == actor.Address
	}
	return false
}
