package enum

type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "open"
	ConversationStatusClosed ConversationStatus = "closed"
	ConversationStatusSpam   ConversationStatus = "spam"
)

func (s ConversationStatus) String() string {
	return string(s)
}

func (s ConversationStatus) IsValid() bool {
	switch s {
	case ConversationStatusOpen, ConversationStatusClosed, ConversationStatusSpam:
		return true
	}
	return false
}

type MailProvider string

const (
	MailProviderGmail MailProvider = "gmail"
)

func (p MailProvider) String() string {
	return string(p)
}
