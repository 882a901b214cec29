package chat_test

import (
	"github.com/killallgit/canvaschat/pkg/chat"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Conversation", func() {
	Describe("NewConversationWithSystem", func() {
		It("should create conversation with system message", func() {
			conv := chat.NewConversationWithSystem("qwen3:latest", "You are a helpful assistant")

			Expect(conv.Model).To(Equal("qwen3:latest"))
			Expect(conv.Messages).To(HaveLen(1))
			Expect(conv.Messages[0].IsSystem()).To(BeTrue())
		})

		It("should create empty conversation when system prompt is empty", func() {
			conv := chat.NewConversationWithSystem("qwen3:latest", "")

			Expect(conv.Messages).To(BeEmpty())
		})
	})

	Describe("AddMessage", func() {
		It("should add message to conversation immutably", func() {
			original := chat.NewConversation("qwen3:latest")
			updated := chat.AddMessage(original, chat.NewUserMessage("Hello"))

			Expect(original.Messages).To(BeEmpty())
			Expect(updated.Messages).To(HaveLen(1))
		})
	})

	Describe("ReplaceLastContent", func() {
		var (
			conv     chat.Conversation
			inFlight chat.Message
		)

		BeforeEach(func() {
			inFlight = chat.NewAssistantMessage("")
			conv = chat.AddMessage(chat.NewConversation("m"), chat.NewUserMessage("Hi"))
			conv = chat.AddMessage(conv, inFlight)
		})

		It("should replace the content of the last message wholesale", func() {
			updated, ok := chat.ReplaceLastContent(conv, inFlight.ID, "Hello world.")

			Expect(ok).To(BeTrue())
			last, _ := chat.GetLastMessage(updated)
			Expect(last.Content).To(Equal("Hello world."))
			Expect(last.ID).To(Equal(inFlight.ID))

			previous, _ := chat.GetLastMessage(conv)
			Expect(previous.Content).To(BeEmpty())
		})

		It("should refuse when the last message is a different one", func() {
			conv = chat.AddMessage(conv, chat.NewUserMessage("newer"))

			updated, ok := chat.ReplaceLastContent(conv, inFlight.ID, "late")

			Expect(ok).To(BeFalse())
			Expect(updated).To(Equal(conv))
		})

		It("should refuse on an empty conversation", func() {
			_, ok := chat.ReplaceLastContent(chat.NewConversation("m"), inFlight.ID, "x")

			Expect(ok).To(BeFalse())
		})
	})

	Describe("ResetConversation", func() {
		It("should keep only system messages", func() {
			conv := chat.NewConversationWithSystem("m", "be brief")
			conv = chat.AddMessage(conv, chat.NewUserMessage("Hi"))
			conv = chat.AddMessage(conv, chat.NewAssistantMessage("Hello"))

			reset := chat.ResetConversation(conv)

			Expect(reset.Messages).To(HaveLen(1))
			Expect(reset.Messages[0].IsSystem()).To(BeTrue())
			Expect(conv.Messages).To(HaveLen(3))
		})
	})

	Describe("lookups", func() {
		It("should find the newest message and filter by role", func() {
			conv := chat.NewConversation("m")
			_, found := chat.GetLastMessage(conv)
			Expect(found).To(BeFalse())

			conv = chat.AddMessage(conv, chat.NewUserMessage("first"))
			conv = chat.AddMessage(conv, chat.NewAssistantMessage("reply"))
			conv = chat.AddMessage(conv, chat.NewUserMessage("second"))

			last, found := chat.GetLastMessage(conv)
			Expect(found).To(BeTrue())
			Expect(last.Content).To(Equal("second"))

			Expect(chat.GetMessagesByRole(conv, chat.RoleUser)).To(HaveLen(2))
		})

		It("should return a copy of the messages", func() {
			conv := chat.AddMessage(chat.NewConversation("m"), chat.NewUserMessage("Hi"))

			messages := chat.GetMessages(conv)
			messages[0].Content = "changed"

			Expect(conv.Messages[0].Content).To(Equal("Hi"))
		})
	})
})
