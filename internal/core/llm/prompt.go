package llm

import "strings"

// DataPlaceholder is replaced with the serialized input in prompt templates.
const DataPlaceholder = "{{data}}"

// DefaultPromptTemplate is used when no template is configured.
const DefaultPromptTemplate = "Please summarize the following document content in a concise manner:\n\n" + DataPlaceholder

// RenderPrompt substitutes every occurrence of {{data}} in tmpl.
func RenderPrompt(tmpl, data string) string {
	if tmpl == "" {
		tmpl = DefaultPromptTemplate
	}
	return strings.ReplaceAll(tmpl, DataPlaceholder, data)
}
