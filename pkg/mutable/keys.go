package mutable

// Storage-driver key layout. Everything a datastore ever writes lives under
// NamespacePrefix(datastoreID), so deleting a datastore is a prefix sweep.

func EnvelopeKey(datastoreID string, deviceID string, dataID string) string {
	return datastoreID + "/mutable/" + deviceID + "/" + dataID
}

func TombstoneKey(datastoreID string, deviceID string, dataID string) string {
	return datastoreID + "/tombstone/" + deviceID + "/" + dataID
}

func NamespacePrefix(datastoreID string) string {
	return datastoreID + "/"
}
