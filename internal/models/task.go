package models

// MessageKind distinguishes the renderable units of one outbound message.
// The kind set is fixed; senders must handle it exhaustively.
type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageLink MessageKind = "link"
)

// Message is one renderable part of an outbound chat message.
type Message struct {
	Kind    MessageKind `json:"type"`
	Content string      `json:"content"`
}

// DispatchTask is the broker payload consumed by the dispatcher. It is
// self-contained on purpose: the sender-only consumer never queries the
// database, everything it needs travels in the message.
type DispatchTask struct {
	TaskID            string    `json:"taskId,omitempty"`
	OutreachTaskID    string    `json:"outreachTaskId,omitempty"`
	SampleID          string    `json:"sampleId,omitempty"`
	Region            string    `json:"region"`
	PlatformCreatorID string    `json:"platformCreatorId"`
	PlatformProductID string    `json:"platformProductId,omitempty"`
	AccountName       string    `json:"accountName,omitempty"`
	OperatorID        string    `json:"operatorId,omitempty"`
	Messages          []Message `json:"messages"`
}

// InteractionRecord is one past interaction with a creator, exposed for the
// sibling decision policy that decides whether to message at all.
type InteractionRecord struct {
	BrandName  string `json:"brandName"`
	DidConnect bool   `json:"didConnect"`
	DidReply   bool   `json:"didReply"`
}
