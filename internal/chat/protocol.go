package chat

// Frame types on the chat WebSocket channel.
const (
	FrameTypeChat       = "chat"        // outbound user message
	FrameTypeAIResponse = "ai_response" // inbound streamed response
	FrameTypeError      = "error"       // inbound application error
	FrameTypeConnection = "connection"  // inbound connection status
)

// Events within an ai_response frame.
const (
	EventChunk    = "chunk"    // incremental text
	EventStatus   = "status"   // sub-agent activity, out of band
	EventComplete = "complete" // terminal event for the turn
)

// Frame is the envelope for all chat channel messages. The Type field
// discriminates; ai_response frames further discriminate on Event.
type Frame struct {
	Type string `json:"type"`

	// Turn correlation. Generated client-side at turn start and echoed
	// by the backend; frames without it are attributed to the current
	// in-flight turn.
	TurnID string `json:"turnId,omitempty"`

	// Outbound chat fields
	Message       string `json:"message,omitempty"`
	Identity      string `json:"identity,omitempty"`
	SessionToken  string `json:"sessionToken,omitempty"`
	LearningLevel int    `json:"learningLevel,omitempty"`

	// Inbound ai_response fields
	Event       string   `json:"event,omitempty"`
	Chunk       string   `json:"chunk,omitempty"`
	Agent       string   `json:"agent,omitempty"`
	Status      string   `json:"status,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`

	// Error (type="error")
	Error string `json:"error,omitempty"`
}

// NewChatFrame builds the outbound frame for one user turn.
func NewChatFrame(turnID, message, identity, sessionToken string, learningLevel int) Frame {
	return Frame{
		Type:          FrameTypeChat,
		TurnID:        turnID,
		Message:       message,
		Identity:      identity,
		SessionToken:  sessionToken,
		LearningLevel: learningLevel,
	}
}
