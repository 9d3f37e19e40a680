package translator

// ChatSink frames chat completion chunks for chat-completions clients.
type ChatSink struct {
	done bool
}

func NewChatSink() *ChatSink { return &ChatSink{} }

// Feed frames one chunk as an SSE data line.
func (s *ChatSink) Feed(chunk string) []string {
	return []string{"data: " + chunk + "\n\n"}
}

// Close emits the [DONE] sentinel exactly once.
func (s *ChatSink) Close() []string {
	if s.done {
		return nil
	}
	s.done = true
	return []string{"data: [DONE]\n\n"}
}
