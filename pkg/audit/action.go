package audit

import (
	"errors"
	"fmt"
)

// Action is the kind of audited event
type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionView        Action = "view"
	ActionLogin       Action = "login"
	ActionLogout      Action = "logout"
	ActionExport      Action = "export"
	ActionApprove     Action = "approve"
	ActionDeny        Action = "deny"
	ActionImpersonate Action = "impersonate"
)

// ErrInvalidAction is returned for actions outside the closed set
var ErrInvalidAction = errors.New("invalid audit action")

// actionWeights is the action component of the risk score
var actionWeights = map[Action]int{
	ActionView:        0,
	ActionLogout:      0,
	ActionLogin:       5,
	ActionDeny:        10,
	ActionCreate:      15,
	ActionUpdate:      15,
	ActionExport:      20,
	ActionApprove:     20,
	ActionDelete:      30,
	ActionImpersonate: 35,
}

// Actions lists every valid action
func Actions() []Action {
	return []Action{
		ActionCreate, ActionUpdate, ActionDelete, ActionView, ActionLogin,
		ActionLogout, ActionExport, ActionApprove, ActionDeny, ActionImpersonate,
	}
}

// Valid reports whether a is in the closed set
func (a Action) Valid() bool {
	_, ok := actionWeights[a]
	return ok
}

// ParseAction converts s into an Action
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// ActionForVerb maps the verb of a permission key to the audit action it
// implies. Verbs without a direct counterpart are recorded as updates.
func ActionForVerb(verb string) Action {
	switch verb {
	case "view", "view_all", "view_history", "view_details", "view_sensitive", "view_tokens":
		return ActionView
	case "create", "upload":
		return ActionCreate
	case "delete":
		return ActionDelete
	case "export":
		return ActionExport
	case "approve":
		return ActionApprove
	case "impersonate":
		return ActionImpersonate
	}
	if a := Action(verb); a.Valid() {
		return a
	}
	return ActionUpdate
}
