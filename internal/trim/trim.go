// Package trim bounds conversation history before upstream dispatch. Long
// sessions otherwise exceed upstream context windows or request-size caps;
// the policy drops whole turns from the front first and mutilates individual
// fields only as a last resort.
package trim

import (
	log "github.com/sirupsen/logrus"

	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
)

// Limits bound one request's history.
type Limits struct {
	MaxTurns      int
	MaxMessages   int
	MaxInputChars int
}

// DefaultLimits returns the stock bounds.
func DefaultLimits() Limits {
	return Limits{MaxTurns: 40, MaxMessages: 200, MaxInputChars: 300000}
}

// maxPasses caps the shrink loop; each pass makes monotone progress, so the
// cap only guards against a policy bug looping forever.
const maxPasses = 12

// Request shrinks req in place until it fits the limits or no rule makes
// further progress. The last user message is never dropped. Tool pairs are
// sanitized afterwards, since dropping a turn can orphan a call or a result.
func Request(req *translator.Request, limits Limits) {
	if limits.MaxTurns <= 0 && limits.MaxMessages <= 0 && limits.MaxInputChars <= 0 {
		SanitizeToolPairs(req)
		return
	}

	before := len(req.Messages)
	for pass := 0; pass < maxPasses && !fits(req, limits); pass++ {
		if !shrinkOnce(req, limits) {
			break
		}
	}
	if !fits(req, limits) {
		reset(req)
	}
	if dropped := before - len(req.Messages); dropped > 0 {
		log.Debugf("trimmed %d of %d history messages", dropped, before)
	}

	SanitizeToolPairs(req)
}

func fits(req *translator.Request, limits Limits) bool {
	if limits.MaxTurns > 0 && countTurns(req) > limits.MaxTurns {
		return false
	}
	if limits.MaxMessages > 0 && len(req.Messages) > limits.MaxMessages {
		return false
	}
	if limits.MaxInputChars > 0 && req.CharCount() > limits.MaxInputChars {
		return false
	}
	return true
}

// countTurns counts user messages after the leading system prefix.
func countTurns(req *translator.Request) int {
	turns := 0
	for i := systemPrefixLen(req); i < len(req.Messages); i++ {
		if req.Messages[i].Role == translator.RoleUser {
			turns++
		}
	}
	return turns
}

func systemPrefixLen(req *translator.Request) int {
	n := 0
	for n < len(req.Messages) && req.Messages[n].Role == translator.RoleSystem {
		n++
	}
	return n
}

func lastUserIndex(req *translator.Request) int {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == translator.RoleUser {
			return i
		}
	}
	return -1
}

// shrinkOnce applies the first rule that makes progress and reports whether
// anything changed.
func shrinkOnce(req *translator.Request, limits Limits) bool {
	if dropOldestTurn(req) {
		return true
	}
	if limits.MaxInputChars > 0 && shrinkSystemPrefix(req, limits) {
		return true
	}
	if dropTail(req) {
		return true
	}
	if limits.MaxInputChars > 0 && truncateLongestField(req, limits) {
		return true
	}
	if len(req.Tools) > 0 {
		req.Tools = nil
		req.ToolChoice = ""
		req.ToolChoiceName = ""
		return true
	}
	return false
}

// dropOldestTurn advances the window past the first turn, keeping the system
// prefix and never crossing the last user message.
func dropOldestTurn(req *translator.Request) bool {
	prefix := systemPrefixLen(req)
	last := lastUserIndex(req)
	if last < 0 {
		return false
	}

	// The oldest turn starts at the first user message; it ends just before
	// the next user message.
	start := -1
	for i := prefix; i < len(req.Messages); i++ {
		if req.Messages[i].Role == translator.RoleUser {
			start = i
			break
		}
	}
	if start < 0 || start >= last {
		return false
	}
	next := -1
	for i := start + 1; i < len(req.Messages); i++ {
		if req.Messages[i].Role == translator.RoleUser {
			next = i
			break
		}
	}
	if next < 0 || next > last {
		return false
	}
	req.Messages = append(req.Messages[:start], req.Messages[next:]...)
	return true
}

// shrinkSystemPrefix drops characters from the front of the combined system
// text until the request fits, or the prefix is gone.
func shrinkSystemPrefix(req *translator.Request, limits Limits) bool {
	prefix := systemPrefixLen(req)
	if prefix == 0 {
		return false
	}
	over := req.CharCount() - limits.MaxInputChars
	if over <= 0 {
		return false
	}
	for i := 0; i < prefix && over > 0; i++ {
		text := req.Messages[i].Text()
		if len(text) == 0 {
			continue
		}
		cut := over
		if cut > len(text) {
			cut = len(text)
		}
		req.Messages[i].Parts = []translator.Part{translator.TextPart(text[cut:])}
		over -= cut
	}
	// Remove now-empty system messages.
	kept := req.Messages[:0]
	removed := false
	for i := range req.Messages {
		if i < prefix && req.Messages[i].Role == translator.RoleSystem && req.Messages[i].Text() == "" {
			removed = true
			continue
		}
		kept = append(kept, req.Messages[i])
	}
	req.Messages = kept
	return removed || over <= 0
}

// dropTail removes non-user messages after the last user message.
func dropTail(req *translator.Request) bool {
	last := lastUserIndex(req)
	if last < 0 || last == len(req.Messages)-1 {
		return false
	}
	req.Messages = req.Messages[:last+1]
	return true
}

// truncateLongestField binary-searches the largest suffix of the single
// longest string field that still fits, keeping the tail.
func truncateLongestField(req *translator.Request, limits Limits) bool {
	type field struct {
		length int
		set    func(string)
		get    func() string
	}
	var longest *field
	consider := func(f field) {
		if longest == nil || f.length > longest.length {
			longest = &f
		}
	}

	for i := range req.Messages {
		msg := &req.Messages[i]
		for j := range msg.Parts {
			part := &msg.Parts[j]
			if part.Type != "text" || part.Text == "" {
				continue
			}
			consider(field{
				length: len(part.Text),
				get:    func() string { return part.Text },
				set:    func(s string) { part.Text = s },
			})
		}
		for j := range msg.ToolCalls {
			call := &msg.ToolCalls[j]
			if call.Arguments == "" {
				continue
			}
			consider(field{
				length: len(call.Arguments),
				get:    func() string { return call.Arguments },
				set:    func(s string) { call.Arguments = s },
			})
		}
	}
	if longest == nil {
		return false
	}

	budget := limits.MaxInputChars - (req.CharCount() - longest.length)
	if budget < 0 {
		budget = 0
	}
	if budget >= longest.length {
		return false
	}

	text := longest.get()
	lo, hi := 0, longest.length // keep characters from the tail
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if mid <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	longest.set(text[len(text)-lo:])
	return true
}

// reset falls back to the minimal request: the latest user message only.
func reset(req *translator.Request) {
	last := lastUserIndex(req)
	if last < 0 {
		return
	}
	req.Messages = []translator.Message{req.Messages[last]}
	req.Tools = nil
	req.ToolChoice = ""
	req.ToolChoiceName = ""
}
