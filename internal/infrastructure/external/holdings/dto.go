package holdings

// holdingsResponse is the wire shape of the wallet holdings endpoint.
// Tokens maps a mint address to the accounts holding it; the balance of a
// mint is the sum of its accounts' uiAmount values.
type holdingsResponse struct {
	Amount         string                             `json:"amount"`
	UIAmount       float64                            `json:"uiAmount"`
	UIAmountString string                             `json:"uiAmountString"`
	Tokens         map[string][]holdingsTokenResponse `json:"tokens"`
}

type holdingsTokenResponse struct {
	Account                  string  `json:"account"`
	Amount                   string  `json:"amount"`
	UIAmount                 float64 `json:"uiAmount"`
	UIAmountString           string  `json:"uiAmountString"`
	IsFrozen                 bool    `json:"isFrozen"`
	IsAssociatedTokenAccount bool    `json:"isAssociatedTokenAccount"`
	Decimals                 int     `json:"decimals"`
	ProgramID                string  `json:"programId"`
	ExcludeFromNetWorth      bool    `json:"excludeFromNetWorth"`
}

// stakedResponse is the wire shape of the governance staking endpoint.
type stakedResponse struct {
	StakedJup float64 `json:"stakedJup"`
}
