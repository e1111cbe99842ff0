package domain

type PublishPolicyInput struct {
	EpochID        string             `json:"epoch_id"`
	IsSolvent      bool               `json:"is_solvent"`
	Verification   VerificationReport `json:"verification"`
	FailedChecks   []string           `json:"failed_checks"`
	AllowInsolvent bool               `json:"allow_insolvent"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
