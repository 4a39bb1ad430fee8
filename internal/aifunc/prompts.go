package aifunc

// GrammarSystemPrompt backs the fix-grammar rule.
const GrammarSystemPrompt = `You are a grammar correction assistant.
Fix any grammatical errors in the following text.
Preserve the original meaning and tone.
Return ONLY the corrected text with no explanations or additional commentary.
Do not add quotes around the text.`

const (
	emailPrompt      = `Rewrite the following as a professional email. Include a greeting and sign-off. Keep it concise.`
	codePromptPrompt = `Convert the following spoken description into a clear, well-structured code prompt or specification.`
	summarizePrompt  = `Summarize the following text concisely, capturing the key points.`
	casualPrompt     = `Rewrite the following text in a casual, friendly tone.`
	translatePrompt  = `Translate the following text to English. If it is already in English, improve clarity.`
)
