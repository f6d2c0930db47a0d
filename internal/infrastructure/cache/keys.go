package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Key prefixes. Everything Touille writes to Redis lives under one
// namespace so an operator can inspect or flush it without touching
// other tenants of the instance.
const (
	keyPrefixTranscript   = "touille:transcript:"
	keyPrefixChatHistory  = "touille:chat:history:"
	keyPrefixProcessLock  = "touille:lock:process:"
	keyPrefixSession      = "touille:session:"
	keyPrefixMFAConfig    = "touille:mfa:config:"
	keyPrefixMFAChallenge = "touille:mfa:challenge:"
	keyPrefixRateLimit    = "touille:ratelimit:"
)

func hashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TranscriptKey builds the cache key for a normalized video URL
func TranscriptKey(url string) string {
	return keyPrefixTranscript + hashKey(url)
}

// ChatHistoryKey builds the cache key for a step chat transcript.
// Keyed per user, recipe URL and step so each step modal has its own
// thread.
func ChatHistoryKey(userID, url string, step int) string {
	return keyPrefixChatHistory + hashKey(userID, url, strconv.Itoa(step))
}

// ProcessLockKey builds the single-flight lock key for a pipeline run
func ProcessLockKey(url, userID string) string {
	return keyPrefixProcessLock + hashKey(url, userID)
}

// SessionKey builds the cache key for a session token. The token is
// hashed so raw tokens never appear in the keyspace.
func SessionKey(token string) string {
	return keyPrefixSession + hashKey(token)
}

// MFAConfigKey builds the key for a user's TOTP enrollment
func MFAConfigKey(userID string) string {
	return keyPrefixMFAConfig + userID
}

// MFAChallengeKey builds the key for a pending login challenge
func MFAChallengeKey(challengeID string) string {
	return keyPrefixMFAChallenge + challengeID
}

// RateLimitKey builds the counter key for a rate limit scope and subject
func RateLimitKey(scope, subject string) string {
	return keyPrefixRateLimit + scope + ":" + hashKey(subject)
}
