package pipeline

import "errors"

// Errors returned at the pipeline boundary. Their messages are shown to end
// users as-is; underlying causes are logged, never surfaced.
var (
	ErrSmartGoalFailed = errors.New("SMART goal generation failed")
	ErrInvalidPlan     = errors.New("failed to generate valid goal plan")
	ErrPlanNotFound    = errors.New("plan not found, please try again")
	ErrEmptyGoal       = errors.New("validated goal is required")
	ErrEmptyFeedback   = errors.New("feedback text is required")
)
