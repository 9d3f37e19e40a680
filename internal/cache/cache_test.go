package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeyPriority(t *testing.T) {
	body := []byte(`{"model":"m","user":"u-42","messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, "sess-1", SessionKey(" sess-1 ", "tok", body))
	assert.Equal(t, "u-42", SessionKey("", "tok", body))

	noUser := []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`)
	hashed := SessionKey("", "tok", noUser)
	assert.Len(t, hashed, 32)
	// Stable across calls, distinct per token and per conversation.
	assert.Equal(t, hashed, SessionKey("", "tok", noUser))
	assert.NotEqual(t, hashed, SessionKey("", "other", noUser))
	assert.NotEqual(t, hashed, SessionKey("", "tok", []byte(`{"model":"m","messages":[{"role":"user","content":"bye"}]}`)))
}

func TestSessionKeyReadsAllDialects(t *testing.T) {
	chat := SessionKey("", "", []byte(`{"model":"m","messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}]}`))
	responses := SessionKey("", "", []byte(`{"model":"m","input":[{"role":"user","content":[{"type":"input_text","text":"hi"}]}]}`))
	gemini := SessionKey("", "", []byte(`{"model":"m","contents":[{"role":"user","parts":[{"text":"hi"}]}]}`))

	assert.Equal(t, chat, responses)
	assert.Equal(t, chat, gemini)
}

func TestPreviousResponseIDRoundTrip(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(16))
	assert.Empty(t, c.PreviousResponseID("s"))

	c.PutPreviousResponseID("s", "resp_abc")
	assert.Equal(t, "resp_abc", c.PreviousResponseID("s"))
	assert.Empty(t, c.PreviousResponseID("other"))

	// Empty writes are ignored, not clearing.
	c.PutPreviousResponseID("s", "")
	assert.Equal(t, "resp_abc", c.PreviousResponseID("s"))
}

func TestNilCacheIsInert(t *testing.T) {
	var c *SessionCache
	c.PutPreviousResponseID("s", "resp_x")
	assert.Empty(t, c.PreviousResponseID("s"))
	assert.Nil(t, c.ThoughtSignatures("s"))

	c = NewSessionCache(nil)
	c.PutPreviousResponseID("s", "resp_x")
	assert.Empty(t, c.PreviousResponseID("s"))
}

func TestThoughtSignaturesMerge(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(16))
	c.PutThoughtSignatures("s", map[string]ThoughtSignature{
		"call_1": {Signature: "sig1"},
	})
	c.PutThoughtSignatures("s", map[string]ThoughtSignature{
		"call_2": {Signature: "sig2", Name: "f"},
	})

	got := c.ThoughtSignatures("s")
	require.Len(t, got, 2)
	assert.Equal(t, "sig1", got["call_1"].Signature)
	assert.Equal(t, "f", got["call_2"].Name)
	assert.NotZero(t, got["call_1"].UpdatedAt)
}

func TestThoughtSignaturesEvictOldest(t *testing.T) {
	c := NewSessionCache(NewMemoryStore(16))
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }

	for i := 0; i < MaxThoughtSignatures+5; i++ {
		clock = clock.Add(time.Second)
		c.PutThoughtSignatures("s", map[string]ThoughtSignature{
			fmt.Sprintf("call_%03d", i): {Signature: "sig"},
		})
	}

	got := c.ThoughtSignatures("s")
	require.Len(t, got, MaxThoughtSignatures)
	for i := 0; i < 5; i++ {
		assert.NotContains(t, got, fmt.Sprintf("call_%03d", i))
	}
	assert.Contains(t, got, fmt.Sprintf("call_%03d", MaxThoughtSignatures+4))
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore(16)
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	s.Put("k", []byte("v"), time.Minute)
	_, ok := s.Get("k")
	assert.True(t, ok)

	clock = clock.Add(2 * time.Minute)
	_, ok = s.Get("k")
	assert.False(t, ok)

	// No TTL means no expiry.
	s.Put("forever", []byte("v"), 0)
	clock = clock.Add(1000 * time.Hour)
	_, ok = s.Get("forever")
	assert.True(t, ok)
}

func TestMemoryStoreLRU(t *testing.T) {
	s := NewMemoryStore(2)
	s.Put("a", []byte("1"), 0)
	s.Put("b", []byte("2"), 0)

	// Touch a so b becomes the eviction victim.
	_, ok := s.Get("a")
	require.True(t, ok)

	s.Put("c", []byte("3"), 0)
	_, ok = s.Get("b")
	assert.False(t, ok)
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
}
