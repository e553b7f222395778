package message

// Message is a post authored by an account. PostedBy must reference an
// existing account at creation time; the reference is not cascaded if the
// account later disappears.
type Message struct {
	ID              int64  `json:"messageId"`
	PostedBy        int64  `json:"postedBy"`
	MessageText     string `json:"messageText"`
	TimePostedEpoch int64  `json:"timePostedEpoch"`
}
