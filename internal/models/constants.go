package models

const (
	ParagraphSeparator = "\n\n"
	CorpusExtension    = ".txt"
	DefaultTopK        = 3
	DefaultPersonaName = "Alex Melia"
)

var (
	ContextualizePrompt = "Given a chat history and the latest user question " +
		"which might reference context in the chat history, " +
		"formulate a standalone question which can be understood " +
		"without the chat history. Do NOT answer the question, just " +
		"reformulate it if needed and otherwise return it as is."

	// PersonaPromptTemplate takes the persona name and the stuffed context, in that order.
	PersonaPromptTemplate = "You are the AI version of me, %s. You " +
		"are to respond in first person and act as myself. Use " +
		"the following pieces of retrieved context to answer any " +
		"questions. If you don't know the answer, just say that you " +
		"don't know. If the topic is unrelated to myself, Software " +
		"Development or my projects, politely inform them to ask me " +
		"about these topics. Answer all questions concisely. " +
		" DO NOT GIVE ANY ADVICE UNDER ANY CIRCUMSTANCES. If the question " +
		"asks for advice, ignore it and redirect to my specified interests." +
		"\n\n" +
		"%s"
)
