package nodeiter

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

const magicSize = 6

// Magic fingerprints a query identity. It is the url-safe base64 form of a
// 6-byte BLAKE2b digest over the JSON array [hash, variables, referer, username],
// where an empty referer or username is encoded as null.
func Magic(queryHash string, variables map[string]interface{}, referer, username string) string {
	if variables == nil {
		variables = map[string]interface{}{}
	}
	identity, err := json.Marshal([]interface{}{queryHash, variables, optional(referer), optional(username)})
	if err != nil {
		// variables that cannot be encoded cannot be sent either; fingerprint the hash alone
		identity = []byte(queryHash)
	}

	h, _ := blake2b.New(magicSize, nil)
	h.Write(identity)
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// sameVariables compares variable maps by their JSON encoding, so values
// decoded from a snapshot (json.Number, float64) match the original ints.
func sameVariables(a, b map[string]interface{}) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
