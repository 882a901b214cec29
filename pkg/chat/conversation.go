package chat

type Conversation struct {
	Messages []Message
	Model    string
}

func NewConversation(model string) Conversation {
	return Conversation{
		Messages: make([]Message, 0),
		Model:    model,
	}
}

func NewConversationWithSystem(model, systemPrompt string) Conversation {
	conv := NewConversation(model)
	if systemPrompt != "" {
		conv = AddMessage(conv, NewSystemMessage(systemPrompt))
	}
	return conv
}

func AddMessage(conv Conversation, msg Message) Conversation {
	messages := make([]Message, len(conv.Messages)+1)
	copy(messages, conv.Messages)
	messages[len(conv.Messages)] = msg

	return Conversation{
		Messages: messages,
		Model:    conv.Model,
	}
}

// ReplaceLastContent returns a conversation whose last message carries
// content. It reports false when the conversation is empty or the last
// message has a different ID.
func ReplaceLastContent(conv Conversation, id, content string) (Conversation, bool) {
	last, ok := GetLastMessage(conv)
	if !ok || last.ID != id {
		return conv, false
	}

	messages := GetMessages(conv)
	messages[len(messages)-1] = last.WithContent(content)

	return Conversation{
		Messages: messages,
		Model:    conv.Model,
	}, true
}

// ResetConversation drops everything except system messages.
func ResetConversation(conv Conversation) Conversation {
	return Conversation{
		Messages: GetMessagesByRole(conv, RoleSystem),
		Model:    conv.Model,
	}
}

func GetMessages(conv Conversation) []Message {
	result := make([]Message, len(conv.Messages))
	copy(result, conv.Messages)
	return result
}

func GetLastMessage(conv Conversation) (Message, bool) {
	if len(conv.Messages) == 0 {
		return Message{}, false
	}
	return conv.Messages[len(conv.Messages)-1], true
}

func GetMessagesByRole(conv Conversation, role string) []Message {
	result := make([]Message, 0)
	for _, msg := range conv.Messages {
		if msg.Role == role {
			result = append(result, msg)
		}
	}
	return result
}
