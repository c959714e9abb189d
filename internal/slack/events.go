package slack

// Event types delivered by the Events API that the ingester understands.
const (
	EventTypeMessage       = "message"
	EventTypeReactionAdded = "reaction_added"

	CallbackTypeURLVerification = "url_verification"
	CallbackTypeEventCallback   = "event_callback"

	ItemTypeMessage = "message"
)

// EventCallback is the outer envelope posted to the events endpoint.
type EventCallback struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

// Event carries the fields of both message and reaction_added events; which
// fields are populated depends on Type.
type Event struct {
	Type     string `json:"type"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
	TS       string `json:"ts,omitempty"`
	Channel  string `json:"channel,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Subtype  string `json:"subtype,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
	Reaction string `json:"reaction,omitempty"`
	Item     *Item  `json:"item,omitempty"`
	EventTS  string `json:"event_ts,omitempty"`
}

// Item describes what a reaction was attached to.
type Item struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}
