package research

// Context field names shared by all prompts.
const (
	FieldDate     = "current_date"
	FieldQuestion = "question"
	FieldSources  = "sources"
)

// DateLayout is how the current date is shown to the model.
const DateLayout = "January 2, 2006"

const queryInstruction = `You write web search queries.
Given the question in <question>, produce one targeted query that will surface
current, authoritative sources. Today's date is given in <current_date>; use it
when recency matters.
Reply with the query only: no quotes, no explanation, no numbering.`

const queryTask = "Write the search query."

const reflectInstruction = `You review research notes for a question.
Read <sources> and decide what important information about <question> is still
missing or uncertain. Then write one self-contained search query that would
fill that gap.
Reply with a JSON object with exactly two string keys:
  "knowledge_gap": what is missing, in one or two sentences
  "follow_up_query": the next web search query`

const reflectTask = "Identify the knowledge gap and the follow-up query."

const answerInstruction = `You answer questions from research notes.
Use only the material in <sources> to answer <question>. Be direct and
complete. Every fact you state must cite the source it came from as a
markdown link, for example [Title](https://example.com). If the sources do
not answer the question, say so.`

const answerTask = "Write the answer."

// ReflectionSchema is the structured reply expected from the Reflector.
var ReflectionSchema = Schema{
	Name: "reflection",
	Fields: []SchemaField{
		{Name: "knowledge_gap", Description: "What information is still missing."},
		{Name: "follow_up_query", Description: "A web search query that addresses the gap."},
	},
}
