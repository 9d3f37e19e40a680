// Package cache implements the session-scoped caches that survive between
// otherwise stateless HTTP calls: the OpenAI Responses previous_response_id
// linkage and the Gemini thought-signature map. Both are best-effort; every
// backend error is swallowed and treated as a miss.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Retention for both namespaces.
const DefaultTTL = 24 * time.Hour

// MaxThoughtSignatures bounds the per-session thought-signature map.
const MaxThoughtSignatures = 100

// Store is the pluggable key/value backend. Implementations must tolerate
// concurrent writers on the same key; last writer wins.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte, ttl time.Duration)
}

// SessionCache wraps a Store with the two gateway namespaces.
type SessionCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionCache builds a cache over the given store. A nil store yields a
// cache where every read misses and every write is dropped.
func NewSessionCache(store Store) *SessionCache {
	return &SessionCache{store: store, ttl: DefaultTTL, now: time.Now}
}

// SessionKey derives a stable conversation key. Priority: explicit
// x-session-id header, the request's user field, then a hash of the model and
// the first user message, prefixed with the inbound token when available.
func SessionKey(sessionHeader, inboundToken string, rawJSON []byte) string {
	if key := strings.TrimSpace(sessionHeader); key != "" {
		return key
	}
	if user := gjson.GetBytes(rawJSON, "user").String(); user != "" {
		return user
	}

	model := gjson.GetBytes(rawJSON, "model").String()
	firstUser := firstUserText(rawJSON)
	seed := model + "\x00" + firstUser
	if inboundToken != "" {
		seed = inboundToken + "\x00" + seed
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:32]
}

func firstUserText(rawJSON []byte) string {
	for _, path := range []string{"messages", "input", "contents"} {
		items := gjson.GetBytes(rawJSON, path)
		if !items.IsArray() {
			continue
		}
		var text string
		items.ForEach(func(_, item gjson.Result) bool {
			if item.Get("role").String() != "user" {
				return true
			}
			content := item.Get("content")
			if !content.Exists() {
				content = item.Get("parts")
			}
			if content.Type == gjson.String {
				text = content.String()
				return false
			}
			if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					if t := part.Get("text"); t.Exists() {
						text += t.String()
					}
					return true
				})
				return false
			}
			return true
		})
		if text != "" {
			return text
		}
	}
	if input := gjson.GetBytes(rawJSON, "input"); input.Type == gjson.String {
		return input.String()
	}
	return ""
}

func storageKey(prefix, sessionKey string) string {
	sum := sha256.Sum256([]byte(prefix + "_" + sessionKey))
	return hex.EncodeToString(sum[:])
}

// PreviousResponseID returns the cached previous_response_id, or "".
func (c *SessionCache) PreviousResponseID(sessionKey string) string {
	if c == nil || c.store == nil || sessionKey == "" {
		return ""
	}
	data, ok := c.store.Get(storageKey("prev_resp", sessionKey))
	if !ok {
		return ""
	}
	return gjson.GetBytes(data, "previous_response_id").String()
}

// PutPreviousResponseID stores a previous_response_id. Empty values clear
// nothing; they are simply ignored.
func (c *SessionCache) PutPreviousResponseID(sessionKey, responseID string) {
	if c == nil || c.store == nil || sessionKey == "" || responseID == "" {
		return
	}
	entry, _ := json.Marshal(map[string]interface{}{
		"previous_response_id": responseID,
		"updated_at":           c.now().Unix(),
	})
	c.store.Put(storageKey("prev_resp", sessionKey), entry, c.ttl)
}

// ThoughtSignature is one cached Gemini thinking artifact, keyed by the tool
// call id it belongs to.
type ThoughtSignature struct {
	Signature string `json:"thought_signature"`
	Thought   string `json:"thought,omitempty"`
	Name      string `json:"name,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// ThoughtSignatures returns the cached call_id -> signature map, or nil.
func (c *SessionCache) ThoughtSignatures(sessionKey string) map[string]ThoughtSignature {
	if c == nil || c.store == nil || sessionKey == "" {
		return nil
	}
	data, ok := c.store.Get(storageKey("thought_sig", sessionKey))
	if !ok {
		return nil
	}
	var entries map[string]ThoughtSignature
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// PutThoughtSignatures merges the given signatures into the session's map and
// evicts the oldest entries past MaxThoughtSignatures.
func (c *SessionCache) PutThoughtSignatures(sessionKey string, updates map[string]ThoughtSignature) {
	if c == nil || c.store == nil || sessionKey == "" || len(updates) == 0 {
		return
	}
	entries := c.ThoughtSignatures(sessionKey)
	if entries == nil {
		entries = make(map[string]ThoughtSignature, len(updates))
	}
	now := c.now().Unix()
	for callID, sig := range updates {
		if sig.UpdatedAt == 0 {
			sig.UpdatedAt = now
		}
		entries[callID] = sig
	}

	if len(entries) > MaxThoughtSignatures {
		type aged struct {
			id string
			at int64
		}
		order := make([]aged, 0, len(entries))
		for id, sig := range entries {
			order = append(order, aged{id, sig.UpdatedAt})
		}
		sort.Slice(order, func(i, j int) bool { return order[i].at < order[j].at })
		for _, victim := range order[:len(entries)-MaxThoughtSignatures] {
			delete(entries, victim.id)
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	c.store.Put(storageKey("thought_sig", sessionKey), data, c.ttl)
}
