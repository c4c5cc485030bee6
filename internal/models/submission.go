package models

// Base64Image is an attachment encoded for the grading endpoint
type Base64Image struct {
	Data     string `json:"data"`
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType"`
}

type SubmissionEntry struct {
	UserAnswer   *string       `json:"userAnswer"`
	TimeSpent    int           `json:"timeSpent"`
	Base64Images []Base64Image `json:"base64_images,omitempty"`
}

// SubmissionPayload maps local question keys to submission entries
type SubmissionPayload map[string]SubmissionEntry

// AnsweredCount returns how many entries carry an answer
func (p SubmissionPayload) AnsweredCount() int {
	count := 0
	for _, entry := range p {
		if entry.UserAnswer != nil || len(entry.Base64Images) > 0 {
			count++
		}
	}
	return count
}

// TotalSeconds sums the rounded time of all entries
func (p SubmissionPayload) TotalSeconds() int {
	total := 0
	for _, entry := range p {
		total += entry.TimeSpent
	}
	return total
}

type SubmitResult struct {
	AttemptID string   `json:"attempt_id"`
	Status    string   `json:"status"`
	Score     *float64 `json:"score,omitempty"`
	MaxScore  *float64 `json:"max_score,omitempty"`
}
