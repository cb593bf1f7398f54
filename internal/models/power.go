package models

import "github.com/pubkeyapp/realms-vsr-holders/internal/vsr"

// Source attributes a governance power result to the path that produced it
type Source string

const (
	SourceVSR              Source = "vsr_sdk"
	SourceTokenOwnerRecord Source = "token_owner_record"
	SourceNone             Source = "none"
	SourceError            Source = "error"
)

// CanonicalPowerResult is the resolved governance power of one wallet
type CanonicalPowerResult struct {
	Wallet                   string                 `json:"wallet"`
	NativeGovernancePower    float64                `json:"nativeGovernancePower"`
	DelegatedGovernancePower float64                `json:"delegatedGovernancePower"`
	TotalGovernancePower     float64                `json:"totalGovernancePower"`
	Source                   Source                 `json:"source"`
	Deposits                 []vsr.DepositRecord    `json:"deposits,omitempty"`
	Details                  map[string]interface{} `json:"details,omitempty"`
	Error                    string                 `json:"error,omitempty"`
}

// ZeroResult is the result for a wallet with no voting power anywhere
func ZeroResult(wallet string, source Source) CanonicalPowerResult {
	return CanonicalPowerResult{Wallet: wallet, Source: source}
}

// PowerRequest is the body of a batch governance power request
type PowerRequest struct {
	Wallets []string `json:"wallets"`
}

// PowerResponse is the body returned for a batch request
type PowerResponse struct {
	Results []CanonicalPowerResult `json:"results"`
	Cached  bool                   `json:"cached"`
}
