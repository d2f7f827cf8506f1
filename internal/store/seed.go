package store

import (
	"time"

	"RagChat/internal/session"
)

type demoConversation struct {
	title    string
	preview  string
	age      time.Duration
	messages []demoMessage
}

type demoMessage struct {
	role    session.Role
	content string
	age     time.Duration
}

var demoConversations = []demoConversation{
	{
		title:   "Create Chatbot GPT...",
		preview: "These are just the basic steps to get started...",
		age:     time.Hour,
		messages: []demoMessage{
			{
				role:    session.RoleUser,
				content: "Create a chatbot gpt using python language what will be step for that",
				age:     time.Hour,
			},
			{
				role: session.RoleAssistant,
				content: "Sure, I can help you get started with creating a chatbot using GPT in Python. " +
					"Here are the basic steps you'll need to follow:\n\n" +
					"1. Install the required libraries.\n\n" +
					"2. Load the pre-trained model.\n\n" +
					"3. Create a chatbot loop that takes user input, generates a response and outputs it.\n\n" +
					"4. Add some personality to the chatbot with custom prompts.\n\n" +
					"These are just the basic steps to get started with a GPT chatbot in Python. Good luck!",
				age: time.Hour - 100*time.Second,
			},
		},
	},
	{
		title:   "What Is UI UX Design?",
		preview: "UI/UX design focuses on creating intuitive...",
		age:     2 * time.Hour,
	},
	{
		title:   "Create POS System",
		preview: "A Point of Sale system needs several...",
		age:     3 * time.Hour,
	},
	{
		title:   "What Is UX Audit?",
		preview: "A UX audit evaluates the user experience...",
		age:     4 * time.Hour,
	},
}

// DemoSeed returns the sample conversations shown on first launch, newest first
func DemoSeed(now time.Time) []*session.Conversation {
	out := make([]*session.Conversation, 0, len(demoConversations))
	for _, d := range demoConversations {
		conv := session.NewConversation(session.Bare{}, d.title)
		conv.CreatedAt = now.Add(-d.age)
		conv.Timestamp = conv.CreatedAt
		for _, m := range d.messages {
			msg := session.NewMessage(m.role, m.content)
			msg.Timestamp = now.Add(-m.age)
			conv.Messages = append(conv.Messages, msg)
		}
		conv.LastMessage = d.preview
		out = append(out, conv)
	}
	return out
}
