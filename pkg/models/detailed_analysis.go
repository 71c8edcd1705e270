package models

// DetailedReport is returned by /check/detailed and the CLI --detailed flag.
type DetailedReport struct {
	InvocationID      string               `json:"invocation_id"`
	Source            string               `json:"source"`
	Version           int                  `json:"version"`
	Timestamp         string               `json:"timestamp"`
	ProcessingTimeSec float64              `json:"processing_time_sec"`
	Result            QualityResult        `json:"result"`
	Acceptable        bool                 `json:"acceptable"`
	Measurements      Measurements         `json:"measurements"`
	Checks            []QualityCheckResult `json:"checks"`
	Issues            []string             `json:"issues,omitempty"`
	DebugArtifacts    []string             `json:"debug_artifacts,omitempty"`
}

// QualityCheckResult explains one analyzer decision against its threshold.
type QualityCheckResult struct {
	CheckName      string  `json:"check_name"`
	Passed         bool    `json:"passed"`
	ActualValue    float64 `json:"actual_value"`
	ThresholdValue float64 `json:"threshold_value"`
	Message        string  `json:"message"`
	Severity       string  `json:"severity"`
}
