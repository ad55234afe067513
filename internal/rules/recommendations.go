package rules

import "github.com/solatis/overseer/internal/types"

// recommendations maps rule categories to the remediation advice attached to
// violations and business-rule results.
var recommendations = map[types.Category]string{
	types.CategorySecurity:    "Review the action for security impact and narrow its scope before retrying.",
	types.CategoryCompliance:  "Confirm the action meets the applicable compliance requirements and record the justification.",
	types.CategoryOperational: "Check operational readiness (change window, blast radius, rollback plan) before proceeding.",
	types.CategoryQuality:     "Validate the change against quality gates such as tests and review before applying it.",
	types.CategoryCost:        "Estimate the cost impact and confirm budget approval before proceeding.",
}

// defaultRecommendation applies to custom and unknown categories.
const defaultRecommendation = "Review the rule that blocked this action and adjust the request accordingly."

// RecommendationFor returns the recommendation for category.
func RecommendationFor(category types.Category) string {
	if rec, ok := recommendations[category]; ok {
		return rec
	}
	return defaultRecommendation
}
