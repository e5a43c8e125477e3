package models

import (
	"fmt"
	"time"
)

// Action is the closed set of operations the assistant can perform. Wire
// names are parsed through ParseAction so an unrecognized name surfaces as an
// error envelope instead of silently falling through a string switch.
type Action int

const (
	ActionSearchTemplates Action = iota
	ActionGetTemplate
	ActionFindFreelancer
	ActionCreateImplementation
	ActionGetCategories
)

func (a Action) String() string {
	switch a {
	case ActionSearchTemplates:
		return "search_templates"
	case ActionGetTemplate:
		return "get_template"
	case ActionFindFreelancer:
		return "find_freelancer"
	case ActionCreateImplementation:
		return "create_implementation"
	case ActionGetCategories:
		return "get_categories"
	default:
		return "unknown"
	}
}

func ParseAction(name string) (Action, error) {
	switch name {
	case "search_templates":
		return ActionSearchTemplates, nil
	case "get_template":
		return ActionGetTemplate, nil
	case "find_freelancer":
		return ActionFindFreelancer, nil
	case "create_implementation":
		return ActionCreateImplementation, nil
	case "get_categories":
		return ActionGetCategories, nil
	default:
		return 0, fmt.Errorf("unknown action: %s", name)
	}
}

const (
	ActionStatusSuccess = "success"
	ActionStatusError   = "error"
)

// ActionResult is the uniform envelope every dispatched action produces.
// Failures are carried in Status/Error so a bulk caller can process mixed
// outcomes without any operation aborting the batch.
type ActionResult struct {
	Action      string    `json:"action"`
	Status      string    `json:"status"`
	Data        any       `json:"data,omitempty"`
	Error       string    `json:"error,omitempty"`
	OperationID any       `json:"operation_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Operation is one entry of a bulk request. ID is optional; bulk execution
// fills it with the positional index when absent so callers can reconcile
// out-of-order responses.
type Operation struct {
	ID         any            `json:"id,omitempty"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}
