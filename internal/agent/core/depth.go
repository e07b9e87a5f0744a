package core

import "strings"

// Search profiles selected by the depth policy.
const (
	ProfileMinimalSearch   = "minimal_search"
	ProfileIterativeSearch = "iterative_search"
	ProfileMultiPassSearch = "multi_pass_search_with_synthesis"
)

// BuildResearchPlan maps a depth label to an execution plan. Total function:
// unknown labels silently fall back to the standard two-pass plan, and only
// "quick" and "deep" get bespoke plans.
func BuildResearchPlan(depth string) ResearchPlan {
	switch strings.ToLower(depth) {
	case "quick":
		return ResearchPlan{
			Passes:         1,
			PersistentTask: false,
			SearchProfile:  ProfileMinimalSearch,
		}
	case "deep":
		return ResearchPlan{
			Passes:         3,
			PersistentTask: true,
			SearchProfile:  ProfileMultiPassSearch,
			Tasks: []ResearchTask{
				{TaskID: "persistent-task-0", PassIndex: 0, Notes: "init", Status: "created"},
			},
		}
	default:
		return ResearchPlan{
			Passes:         2,
			PersistentTask: false,
			SearchProfile:  ProfileIterativeSearch,
		}
	}
}
