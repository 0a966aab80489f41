package prompts

import "fmt"

const abstractTemplate = `Create a concise abstract for a documentation section. The abstract should not exceed 160 characters.

Context: This is a section of a technical documentation website for %s. Filename: %s

Write one or two sentences that state the primary subject in search-friendly language.
Start with a customer-focused verb such as learn, create, or use. Avoid marketing language
and do not describe what the product allows or enables.

Provide ONLY the abstract text, without any additional formatting, headings, or metadata.

Markdown Content:
%s

Abstract:`

const titleTemplate = `Generate a new title for a %s technical documentation page.

Guidelines:
1. Length: 40-70 characters, preferring shorter titles when possible
2. Clear, concise and task focused
3. Avoid colons and two-part titles
4. Avoid starting with "Managing"

Input:
Original Title: %s
Abstract: %s

Provide only the new title, without any additional text or formatting.`

// Abstract builds the abstract-generation prompt for one document.
func Abstract(serviceName, fileName, content string) string {
	return fmt.Sprintf(abstractTemplate, serviceName, fileName, content)
}

// Title builds the title-generation prompt. It depends on the generated abstract.
func Title(serviceName, existingTitle, abstract string) string {
	return fmt.Sprintf(titleTemplate, serviceName, existingTitle, abstract)
}
