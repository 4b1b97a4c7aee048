package bus

import "context"

// Platform identifies one side of the bridge. The relay core treats the value
// as opaque; the channels package registers the concrete bindings.
type Platform string

const (
	PlatformDiscord  Platform = "discord"
	PlatformTelegram Platform = "telegram"
	PlatformSlack    Platform = "slack"
)

// AttachmentKind is the delivery category for one attachment.
type AttachmentKind int

const (
	KindFile AttachmentKind = iota
	KindImage
	KindVideo
)

func (k AttachmentKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "file"
	}
}

// AttachmentRef points at one attachment of an inbound event. Fetch is lazy:
// bytes are only pulled once the event has survived loop-guard and dedup.
type AttachmentRef struct {
	Filename    string
	ContentType string
	Fetch       func(ctx context.Context) ([]byte, error)
}

// InboundEvent is one message received from a platform subscription. It is
// immutable once constructed and consumed within a single relay operation.
type InboundEvent struct {
	Platform    Platform
	EventID     string // platform message id, "" when the platform has none
	SenderID    string
	SenderName  string
	Text        string
	Attachments []AttachmentRef

	// AvatarFetch lazily resolves an avatar URL for the sender. May be nil.
	// Failures degrade to no avatar and never block delivery.
	AvatarFetch func(ctx context.Context) (string, error)

	// SelfOrigin marks events the platform attributes to the relay's own
	// outbound path (own webhook, own bot account).
	SelfOrigin bool
	// FromBot marks any automated sender, self or not.
	FromBot bool
}

// AttachmentPayload is fetched attachment bytes ready for outbound delivery.
type AttachmentPayload struct {
	Data     []byte
	Filename string
	Kind     AttachmentKind
}

// OutboundContext is the platform-agnostic payload handed to a channel's Send.
// Exactly one of Text or Attachment is set per send; the text and attachments
// of one source message are independent sends.
type OutboundContext struct {
	DisplayName string
	AvatarRef   string
	Text        string
	Attachment  *AttachmentPayload
}
