package models

type Intent int

const (
	IntentGeneral Intent = iota
	IntentSearchTemplates
	IntentFindFreelancer
	IntentImplementationRequest
	IntentGetStats
)

func (i Intent) String() string {
	switch i {
	case IntentSearchTemplates:
		return "search_templates"
	case IntentFindFreelancer:
		return "find_freelancer"
	case IntentImplementationRequest:
		return "implementation_request"
	case IntentGetStats:
		return "get_stats"
	case IntentGeneral:
		return "general"
	default:
		return "unknown"
	}
}
