package storage

// GuestScope is the sentinel scope key used while no identity is resolved
const GuestScope = "guest"

// TokenKey is the fixed key the bearer credential persists under. It is
// deliberately not scoped by identity: the credential is the means of
// discovering the identity.
const TokenKey = "token"

// ConversationsKey returns the storage key of a scope's conversation mapping
func ConversationsKey(scope string) string {
	return "conversations:" + scope
}

// CurrentChatKey returns the storage key of a scope's selected conversation ID
func CurrentChatKey(scope string) string {
	return "currentChatId:" + scope
}
