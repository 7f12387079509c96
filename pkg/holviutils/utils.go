package holviutils

import (
	"github.com/function61/gokit/cryptorandombytes"
	"github.com/google/uuid"
)

// inode UUIDs are generated at creation and never reused
func NewInodeUUID() string {
	return uuid.NewString()
}

// there's going to be comparatively few of these
var NewDeviceID = shortId
var NewDriverID = shortId

func shortId() string {
	return cryptorandombytes.Base64UrlWithoutLeadingDash(3)
}
