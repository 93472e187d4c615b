package insight

// Narrative is the model's release-health read: a confidence call with the
// driver behind it, the supporting signals, and the decision the team owes.
type Narrative struct {
	ConfidencePct     int      `json:"confidencePct"`
	QAStatus          string   `json:"qaStatus"`
	ConfidenceDriver  string   `json:"confidenceDriver"`
	ConfidenceSignals string   `json:"confidenceSignals"`
	TopBlockers       []string `json:"topBlockers"`
	DecisionNeeded    string   `json:"decisionNeeded"`
}
