package backend

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

var (
	contextTemplate = prompts.NewPromptTemplate(
		"You are a helpful AI assistant. "+
			"Use the following context from our past conversation to answer the user's question. "+
			"If the context is not relevant, ignore it.\n\n"+
			"Context:\n- {{.context}}",
		[]string{"context"},
	)

	codeTemplate = prompts.NewPromptTemplate(
		"You are an expert programmer. Based on the following code and the user's request, "+
			"generate the complete, new version of the code. Do not add any conversational text or pleasantries, "+
			"only the raw code.\n\n"+
			"--- CODE ---\n{{.code}}\n--- END CODE ---\n\n"+
			"--- REQUEST ---\n{{.request}}\n--- END REQUEST ---",
		[]string{"code", "request"},
	)
)

// ContextPrompt is the system prompt carrying memory search results.
func ContextPrompt(context []string) (string, error) {
	text, err := contextTemplate.Format(map[string]any{
		"context": strings.Join(context, "\n- "),
	})
	if err != nil {
		return "", fmt.Errorf("failed to format context prompt: %w", err)
	}
	return text, nil
}

// CodePrompt asks the model for the complete new version of code.
func CodePrompt(request, code string) (string, error) {
	text, err := codeTemplate.Format(map[string]any{
		"code":    code,
		"request": request,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format code prompt: %w", err)
	}
	return text, nil
}
