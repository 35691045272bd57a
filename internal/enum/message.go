package enum

type MessageRole string

const (
	MessageRoleExternal MessageRole = "external"
	MessageRoleStaff    MessageRole = "staff"
)

func (r MessageRole) String() string {
	return string(r)
}

type MessageClassification string

const (
	MessageOK                 MessageClassification = "ok"
	MessageAutoResponder      MessageClassification = "auto_responder"
	MessageBounceNotification MessageClassification = "bounce_notification"
	MessageBulk               MessageClassification = "bulk_email"
	MessageIgnoredCategory    MessageClassification = "ignored_category"
)

func (c MessageClassification) String() string {
	return string(c)
}
