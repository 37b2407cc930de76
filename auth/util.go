package auth

import (
	"crypto/md5"
	"fmt"
	"io"
)

// PasswordDigest computes the md5 credential digest the server stores
// for the user.
func PasswordDigest(username, password string) string {
	h := md5.New()
	io.WriteString(h, username)
	io.WriteString(h, ":mongo:")
	io.WriteString(h, password)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// MongoCRKey derives the MONGODB-CR proof for the nonce handshake.
func MongoCRKey(nonce, username, password string) string {
	h := md5.New()
	io.WriteString(h, nonce)
	io.WriteString(h, username)
	io.WriteString(h, PasswordDigest(username, password))
	return fmt.Sprintf("%x", h.Sum(nil))
}
