package model

// ChatMessage is a client-supplied turn
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents an inbound conversation turn
type ChatRequest struct {
	Query    string        `json:"query" binding:"required"`
	Messages []ChatMessage `json:"messages"`
	ThreadID string        `json:"threadId"`
}

// ChatResponse is returned for every conversation turn
type ChatResponse struct {
	Question          string         `json:"question"`
	Listings          []Property     `json:"listings"`
	LeadInfo          *LeadCandidate `json:"lead_info"`
	LeadID            *string        `json:"lead_id"`
	FilterCriteria    FilterCriteria `json:"filter_criteria"`
	FilterDescription string         `json:"filter_description"`
	ThreadID          string         `json:"thread_id"`
}
