package store

// Key layout. One provider document per provider, request documents
// nested under it, and a responses hash per request keyed by donor id.

func providerKey(providerID string) string {
	return "providers:" + providerID
}

func requestKey(providerID, requestID string) string {
	return "providers:" + providerID + ":requests:" + requestID
}

func responsesKey(providerID, requestID string) string {
	return requestKey(providerID, requestID) + ":responses"
}

func donorKey(donorID string) string {
	return "donors:" + donorID
}

func donorMessagesKey(donorID string) string {
	return donorKey(donorID) + ":messages"
}
