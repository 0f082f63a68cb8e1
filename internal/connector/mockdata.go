package connector

import "sort"

type obj = map[string]any
type list = []any

// MockMethods returns the canned methods of a source, keyed by capability.
// Unknown sources yield an empty set.
func MockMethods(source string) map[string]cannedFunc {
	methods := mockData[source]
	out := make(map[string]cannedFunc, len(methods))
	for k, v := range methods {
		out[k] = v
	}
	return out
}

// MockSources lists the sources with canned data, sorted.
func MockSources() []string {
	names := make([]string, 0, len(mockData))
	for name := range mockData {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MockCall runs one canned method directly. ok is false when the source or
// capability has no canned payload.
func MockCall(source, capability string, params map[string]any) (Result, bool) {
	fn, ok := mockData[source][capability]
	if !ok {
		return nil, false
	}
	return fn(params), true
}

var mockData = map[string]map[string]cannedFunc{
	"mixpanel": {
		"query_events": func(map[string]any) Result {
			return obj{
				"events": list{
					obj{"name": "feature_used", "count": 1250, "trend": "+15%"},
					obj{"name": "page_view", "count": 5600, "trend": "+8%"},
					obj{"name": "button_clicked", "count": 3200, "trend": "-3%"},
					obj{"name": "form_submitted", "count": 890, "trend": "+22%"},
				},
				"date_range": "last_30_days",
			}
		},
		"get_user_metrics": func(map[string]any) Result {
			return obj{
				"total_users":          12500,
				"active_users":         8400,
				"retention_rate":       0.67,
				"avg_session_duration": "8m 23s",
				"top_features": list{
					obj{"feature": "Dashboard", "usage": 92},
					obj{"feature": "Reports", "usage": 78},
					obj{"feature": "Settings", "usage": 45},
				},
			}
		},
		"get_funnel_data": func(map[string]any) Result {
			return obj{
				"funnel_name": "User Onboarding",
				"steps": list{
					obj{"step": "Sign Up", "users": 1000, "conversion": 100},
					obj{"step": "Email Verification", "users": 850, "conversion": 85},
					obj{"step": "Profile Setup", "users": 720, "conversion": 72},
					obj{"step": "First Action", "users": 580, "conversion": 58},
				},
				"bottleneck": "Profile Setup - 15% drop-off",
			}
		},
		"get_retention_data": func(map[string]any) Result {
			return obj{
				"cohort": "January 2024",
				"retention": obj{
					"day_1":  0.85,
					"day_7":  0.62,
					"day_30": 0.45,
					"day_90": 0.38,
				},
				"churn_reasons": list{"Missing key features", "UI complexity", "Performance issues"},
			}
		},
	},
	"posthog": {
		"query_events": func(map[string]any) Result {
			return obj{
				"events": list{
					obj{"event": "feature_interaction", "count": 2100},
					obj{"event": "error_occurred", "count": 45},
					obj{"event": "page_load", "count": 8900},
				},
			}
		},
		"get_feature_flags": func(map[string]any) Result {
			return obj{
				"flags": list{
					obj{"name": "new_dashboard", "enabled": true, "rollout": 50},
					obj{"name": "beta_feature", "enabled": true, "rollout": 10},
					obj{"name": "dark_mode", "enabled": true, "rollout": 100},
				},
			}
		},
		"get_session_recordings": func(map[string]any) Result {
			return obj{
				"recordings": list{
					obj{"id": "rec_01", "duration": 412, "start_time": "2024-01-15T10:02:11Z", "person": "user_381"},
					obj{"id": "rec_02", "duration": 95, "start_time": "2024-01-15T11:47:03Z", "person": "user_112"},
					obj{"id": "rec_03", "duration": 1260, "start_time": "2024-01-16T08:15:40Z", "person": "user_907"},
				},
				"total": 3,
			}
		},
		"get_user_cohorts": func(map[string]any) Result {
			return obj{
				"cohorts": list{
					obj{"name": "Power users", "count": 820, "created_at": "2023-11-02T09:00:00Z"},
					obj{"name": "Churn risk", "count": 310, "created_at": "2023-12-11T09:00:00Z"},
					obj{"name": "Trial accounts", "count": 1440, "created_at": "2024-01-03T09:00:00Z"},
				},
			}
		},
	},
	"zendesk": {
		"get_tickets": func(map[string]any) Result {
			return obj{
				"total_tickets":       456,
				"open_tickets":        123,
				"avg_resolution_time": "4.2 hours",
				"satisfaction_score":  4.2,
				"recent_tickets": list{
					obj{"id": 1001, "subject": "Can't export data", "priority": "high", "status": "open"},
					obj{"id": 1002, "subject": "Feature request: bulk actions", "priority": "medium", "status": "pending"},
					obj{"id": 1003, "subject": "UI bug on mobile", "priority": "high", "status": "open"},
				},
			}
		},
		"search_tickets": func(map[string]any) Result {
			return obj{
				"results": list{
					obj{"id": 1004, "subject": "Export functionality broken", "tags": list{"export", "bug"}},
					obj{"id": 1005, "subject": "Need better export options", "tags": list{"export", "feature-request"}},
				},
			}
		},
		"get_ticket_metrics": func(map[string]any) Result {
			return obj{
				"top_issues": list{
					obj{"issue": "Data export problems", "count": 67},
					obj{"issue": "Mobile UI issues", "count": 45},
					obj{"issue": "Performance slowness", "count": 38},
					obj{"issue": "Search not working", "count": 29},
				},
				"trend": "Export issues increased 40% this month",
			}
		},
	},
	"intercom": {
		"get_conversations": func(map[string]any) Result {
			return obj{
				"total_conversations": 234,
				"avg_response_time":   "2.1 hours",
				"topics": list{
					obj{"topic": "Feature requests", "count": 89},
					obj{"topic": "Bug reports", "count": 67},
					obj{"topic": "How-to questions", "count": 78},
				},
			}
		},
		"get_customer_sentiment": func(map[string]any) Result {
			return obj{
				"overall_sentiment": "positive",
				"positive":          62,
				"neutral":           28,
				"negative":          10,
				"common_praise":     list{"Easy to use", "Great support team", "Powerful features"},
				"common_complaints": list{"Missing export feature", "Mobile app needs work", "Slow performance on large datasets"},
			}
		},
	},
	"salesforce": {
		"get_opportunities": func(map[string]any) Result {
			return obj{
				"total_opportunities": 89,
				"total_value":         "$2.3M",
				"win_rate":            0.34,
				"avg_deal_size":       "$25,800",
				"top_opportunities": list{
					obj{"account": "TechCorp", "value": "$120K", "stage": "Negotiation", "probability": 75},
					obj{"account": "RetailCo", "value": "$85K", "stage": "Proposal", "probability": 60},
				},
			}
		},
		"get_accounts": func(map[string]any) Result {
			return obj{
				"accounts": list{
					obj{"name": "TechCorp", "industry": "Technology", "revenue": "$45,000,000", "employees": 1200},
					obj{"name": "RetailCo", "industry": "Retail", "revenue": "$12,500,000", "employees": 430},
					obj{"name": "Enterprise Inc", "industry": "Financial Services", "revenue": "$98,000,000", "employees": 5400},
				},
			}
		},
		"get_win_loss_reasons": func(map[string]any) Result {
			return obj{
				"win_reasons": list{"Better features than competitors", "Strong customer support", "Competitive pricing"},
				"loss_reasons": list{
					"Missing key integrations",
					"Too expensive",
					"Competitor had better mobile app",
					"Lacking advanced analytics",
				},
			}
		},
		"get_customer_feedback": func(map[string]any) Result {
			return obj{
				"feedback": list{
					obj{"account": "TechCorp", "comment": "Love the product but need better export options", "sentiment": "positive"},
					obj{"account": "StartupXYZ", "comment": "Mobile experience needs improvement", "sentiment": "neutral"},
					obj{"account": "Enterprise Inc", "comment": "Would pay more for advanced analytics", "sentiment": "positive"},
				},
			}
		},
	},
	"jira": {
		"get_issues": func(map[string]any) Result {
			return obj{
				"total_issues": 234,
				"open_issues":  89,
				"in_progress":  45,
				"by_type": obj{
					"bug":         67,
					"feature":     112,
					"improvement": 55,
				},
			}
		},
		"get_sprint_data": func(map[string]any) Result {
			return obj{
				"current_sprint":   "Sprint 24",
				"points_committed": 45,
				"points_completed": 38,
				"velocity":         42,
				"burndown_status":  "On track",
			}
		},
		"get_backlog": func(map[string]any) Result {
			return obj{
				"total_items": 156,
				"top_priority": list{
					obj{"key": "PROD-123", "summary": "Add bulk export feature", "priority": "High", "votes": 23},
					obj{"key": "PROD-124", "summary": "Improve mobile UI", "priority": "High", "votes": 18},
					obj{"key": "PROD-125", "summary": "Performance optimization", "priority": "Medium", "votes": 12},
				},
			}
		},
		"get_velocity": func(map[string]any) Result {
			return obj{
				"velocity": list{
					obj{"sprint": "Sprint 23", "completed_issues": 21},
					obj{"sprint": "Sprint 22", "completed_issues": 18},
					obj{"sprint": "Sprint 21", "completed_issues": 24},
				},
			}
		},
	},
	"confluence": {
		"search_pages": func(map[string]any) Result {
			return obj{
				"results": list{
					obj{"title": "Q1 Product Roadmap", "url": "/roadmap-q1"},
					obj{"title": "User Research Summary", "url": "/research-summary"},
					obj{"title": "Feature Requests Log", "url": "/feature-requests"},
				},
			}
		},
		"get_product_docs": func(map[string]any) Result {
			return obj{
				"pages": list{
					obj{"title": "Export Service Overview", "id": "10021", "last_modified": "2024-01-12T14:03:00Z"},
					obj{"title": "Mobile App Architecture", "id": "10034", "last_modified": "2024-01-09T08:41:00Z"},
				},
			}
		},
		"get_requirements": func(map[string]any) Result {
			return obj{
				"requirements": list{
					obj{"id": "REQ-001", "title": "Data Export Feature", "status": "Approved"},
					obj{"id": "REQ-002", "title": "Mobile App Redesign", "status": "In Review"},
					obj{"id": "REQ-003", "title": "Advanced Analytics", "status": "Draft"},
				},
			}
		},
		"get_user_stories": func(map[string]any) Result {
			return obj{
				"stories": list{
					obj{"title": "As an admin I can export all workspace data", "id": "10102"},
					obj{"title": "As a mobile user I can filter reports", "id": "10117"},
				},
			}
		},
	},
}
