package nodeiter

import "time"

// FrozenIterator is the serializable progress of a NodeIterator
type FrozenIterator struct {
	QueryHash       string                 `json:"query_hash"`
	QueryVariables  map[string]interface{} `json:"query_variables"`
	QueryReferer    *string                `json:"query_referer"`
	ContextUsername *string                `json:"context_username"`
	TotalIndex      int                    `json:"total_index"`
	BestBefore      *time.Time             `json:"best_before,omitempty"`
	RemainingData   *PageBuffer            `json:"remaining_data"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
