package types

// ChannelDefinition describes one logical RPC channel
type ChannelDefinition struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Methods     []Method `json:"methods"`
	Events      []Event  `json:"events"`
}

// Method describes a command accepted on a channel
type Method struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter describes a command argument and its default
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// Event describes a push notification emitted on a channel
type Event struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Arguments   []string `json:"arguments,omitempty"`
}
