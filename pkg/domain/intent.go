package domain

// Asset is one (chain, token, amount) entry of a parsed intent.
type Asset struct {
	Chain  string `json:"chain" yaml:"chain" mapstructure:"chain"`
	Token  string `json:"token" yaml:"token" mapstructure:"token"`
	Amount string `json:"amount" yaml:"amount" mapstructure:"amount"`
}

// Constraints are free-form limits attached to an intent.
type Constraints struct {
	Duration        string `json:"duration" yaml:"duration" mapstructure:"duration"`
	MaxGasTolerance string `json:"max_gas_tolerance" yaml:"max_gas_tolerance" mapstructure:"max_gas_tolerance"`
}

// ParsedIntent is the structured form of a natural-language request.
type ParsedIntent struct {
	Goal        string      `json:"goal" yaml:"goal" mapstructure:"goal"`
	Assets      []Asset     `json:"assets" yaml:"assets" mapstructure:"assets"`
	Constraints Constraints `json:"constraints" yaml:"constraints" mapstructure:"constraints"`
}

// Intent is the input of the SetIntent action.
// The commitment and encrypted payload are opaque placeholders; nothing here is
// cryptographically computed.
type Intent struct {
	IntentID         string       `json:"intentId" mapstructure:"intentId"`
	Commitment       string       `json:"commitment" mapstructure:"commitment"`
	EncryptedPayload string       `json:"encryptedPayload" mapstructure:"encryptedPayload"`
	OriginalText     string       `json:"originalText" mapstructure:"originalText"`
	ParsedIntent     ParsedIntent `json:"parsedIntent" mapstructure:"parsedIntent"`
}

// Clone returns a deep copy of the parsed intent.
func (p ParsedIntent) Clone() ParsedIntent {
	out := p
	if p.Assets != nil {
		out.Assets = append(make([]Asset, 0, len(p.Assets)), p.Assets...)
	}
	return out
}
