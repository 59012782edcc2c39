package models

// session keys
const (
	SessionChatHistory = "chat_history"
	SessionRawText     = "raw_text"
	SessionIsUploaded  = "is_uploaded"
	SessionUploadMeta  = "upload_meta"
)

const (
	ContextSeparator = "\n\n"
	NoContextFound   = "No relevant context found."
	NoAnswer         = "I apologize, but I couldn't generate a proper response to your query."
	ThinkTag         = `(?s)<think>.*?</think>`
)

// prompt templates, rendered with langchaingo f-string placeholders
var (
	QAPromptTemplate = `Your name is PaperMind. Answer the user query with the help of the document provided. Ignore parts of the context that are irrelevant to the query.
For document specific questions (personal info, company info, etc.) stick to the document. If the document has no information about the query and you can answer it CORRECTLY anyway, do so while clearly WARNING the user that the document did not contain it. Otherwise STICK TO THE DOCUMENT.
document:{document}

Use this chat history to keep the context of the chat.
chat_history:{chat_history}

query:{query}`

	SummaryPromptTemplate = `Summarise the following topic(s). If the sources all cover the same topic, or parts of one overarching topic, give a detailed summary covering all of them. If the sources cover different topics, summarise each concisely and cite its name or source just above its summary. For URLs infer the topic being discussed and do not talk about the site the information comes from.
{text}`

	FAQPromptTemplate = `Generate frequently asked questions for the following topic(s). If the topics in the sources are unrelated, create a separate questionnaire for each and cite the source or topic before its questions. For URLs infer the topic being discussed and do not talk about the site the information comes from.
{text}`

	GuidePromptTemplate = `Create a study guide: a condensed, focused resource with key points, definitions, formulas and quick questions for the given topic(s). If the text contains unrelated topics still produce a single guide, trimming whatever is not of utmost importance for each source. For URLs infer the topic being discussed and do not talk about the site the information comes from.
{text}`

	TimelinePromptTemplate = `Create a timeline for the topic, listing things in the chronological order in which they happened. Use any dates, months or years mentioned in the text.
For text without an inherent chronology, break it down into fundamental concepts, pick a sensible starting point and warn the user that it has no temporal order.
For code, warn the user at the top that code has no timeline and list the hierarchy of classes or the order in which functions are defined.
Group multiple entries for the same year or month under that period instead of repeating it. Do not stray far from the source text. For unrelated texts create separate, less detailed timelines. For URLs infer the topic being discussed and do not talk about the site the information comes from.
{text}`

	MindMapPromptTemplate = `Create a mind map for the following topic. A mind map is a hierarchical tree of a topic and its sub-topics, repeated to any depth.
The root is the name of the topic or file, followed by the major topics discussed, each with its own sub-topics. Only keep topics of utmost importance. Each node holds only the topic name; essential details go in that topic's sub-tree. Break code down by class structure or independent functions. For unrelated sources create separate, shallower mind maps. For URLs infer the topic being discussed and do not talk about the site the information comes from.
{text}`

	TextNamingPromptTemplate = `From the given content figure out which topic it talks about and output only the topic name. If it is clearly a sub-topic output both as Topic:sub-topic(s).
{content}`
)
