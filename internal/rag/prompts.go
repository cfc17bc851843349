package rag

import (
	"fmt"
	"strings"
)

// SummaryLength selects how detailed a document summary should be.
type SummaryLength string

const (
	SummaryConcise       SummaryLength = "concise"
	SummaryNormal        SummaryLength = "normal"
	SummaryComprehensive SummaryLength = "comprehensive"
)

// ParseSummaryLength validates a summary length. An empty value defaults to
// SummaryNormal.
func ParseSummaryLength(s string) (SummaryLength, error) {
	switch SummaryLength(s) {
	case SummaryConcise, SummaryNormal, SummaryComprehensive:
		return SummaryLength(s), nil
	case "":
		return SummaryNormal, nil
	default:
		return "", fmt.Errorf("unknown summary length %q", s)
	}
}

// The prompt templates contain literal percent signs, so placeholders are
// substituted with a Replacer rather than fmt.

const ragChatPrompt = `
Always answer in the same language as the question.
Answering in any other language is considered incorrect.

You are a precise Retrieval-Augmented Generation assistant.
Your only knowledge is the text shown below.

You must obey these rules:
1. Always answer in the same language as the question.
2. Use clear, uniform plain-text style.
3. Do not use markdown formatting.
4. Do not use bold, italics, or surrounding symbols.
5. Do not insert spaces inside symbols. For example, write 50% and not 50 %.
6. Do not invent any information that is not clearly supported by the provided text.
7. If the answer is not contained in the provided text, say: "I cannot find this information in the provided text."
8. Write answers as complete sentences.
9. Prefer a short, well-structured paragraph. If it improves clarity, you may also use a short plain-text list.

Provided text:
{context}

Question (language must be preserved in the answer):
{query}

Answer in the same language as the question (start immediately, as full sentences, no blank lines):
`

const summaryConcisePrompt = `
You are a precise document summarization assistant.
Your task is to create a CONCISE summary of the provided document.

Requirements:
1. Keep the summary brief - 3-5 sentences maximum
2. Focus only on the most important key points
3. Use clear, plain-text style (no markdown, no formatting)
4. Write in complete sentences
5. Do not invent information not present in the document
6. Capture the main topic and critical takeaways

Document content:
{context}

Provide a concise summary (3-5 sentences, start immediately):
`

const summaryNormalPrompt = `
You are a precise document summarization assistant.
Your task is to create a NORMAL-LENGTH summary of the provided document.

Requirements:
1. Keep the summary moderate - 8-12 sentences
2. Cover the main points and important details
3. Use clear, plain-text style (no markdown, no formatting)
4. Write in complete sentences
5. Do not invent information not present in the document
6. Provide a balanced overview of the document's content

Document content:
{context}

Provide a normal-length summary (8-12 sentences, start immediately):
`

const summaryComprehensivePrompt = `
You are a precise document summarization assistant.
Your task is to create a COMPREHENSIVE summary of the provided document.

Requirements:
1. Create a detailed summary - 15-25 sentences
2. Cover all major points, important details, and supporting information
3. Use clear, plain-text style (no markdown, no formatting)
4. Write in complete sentences and well-structured paragraphs
5. Do not invent information not present in the document
6. Provide thorough coverage of the document's content and structure

Document content:
{context}

Provide a comprehensive summary (15-25 sentences, start immediately):
`

func renderChatPrompt(contextText, query string) string {
	return strings.NewReplacer(
		"{context}", contextText,
		"{query}", query,
	).Replace(ragChatPrompt)
}

func renderSummaryPrompt(length SummaryLength, contextText string) string {
	var tmpl string
	switch length {
	case SummaryConcise:
		tmpl = summaryConcisePrompt
	case SummaryComprehensive:
		tmpl = summaryComprehensivePrompt
	default:
		tmpl = summaryNormalPrompt
	}
	return strings.NewReplacer("{context}", contextText).Replace(tmpl)
}
