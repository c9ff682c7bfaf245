package domain

const (
	DefaultGlobalPrompt = "You are a helpful assistant in a floral agentic workflow system."

	DefaultOCRPrompt = "Analyze this document page. Extract text, identify key entities, and summarize the layout."
	OCRSystemPrompt  = "You are an advanced Optical Character Recognition and Document Analysis agent."
	OCRPromptSuffix  = "\n\n(Perform analysis on the provided document images)"
	OCRTemperature   = 0.2
	OCRMaxTokens     = 12000
	DefaultOCRModel  = "gemini-2.5-flash"

	ToolSystemPrompt = "You are a helpful AI tool assistant."
	ToolTemperature  = 0.3
	ToolMaxTokens    = 2000
)

// Page is one rasterized page of an uploaded document.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Image      string `json:"image"` // data URL
	Selected   bool   `json:"selected"`
}

// SelectedImages returns the images of the selected pages in page order.
func SelectedImages(pages []Page) []string {
	var images []string
	for _, p := range pages {
		if p.Selected {
			images = append(images, p.Image)
		}
	}
	return images
}

// Tool is a note keeper text transformation.
type Tool string

const (
	ToolMarkdown Tool = "markdown"
	ToolEntities Tool = "entities"
	ToolMindmap  Tool = "mindmap"
	ToolQuiz     Tool = "quiz"
	ToolKeywords Tool = "keywords"
)

var toolPrompts = map[Tool]string{
	ToolMarkdown: "Convert the following text into well-structured Markdown.",
	ToolEntities: "Extract exactly 20 key entities from the text in JSON format.",
	ToolMindmap:  "Create a Mermaid.js mindmap syntax for the concepts in this text.",
	ToolQuiz:     "Generate 5 multiple choice questions based on this text.",
	ToolKeywords: "Identify the top 10 keywords.",
}

// Tools lists the available note tools.
func Tools() []Tool {
	return []Tool{ToolMarkdown, ToolEntities, ToolMindmap, ToolQuiz, ToolKeywords}
}

// DefaultPrompt returns the built-in prompt of a tool.
func (t Tool) DefaultPrompt() (string, bool) {
	p, ok := toolPrompts[t]
	return p, ok
}

// NoteKeeper is the scratch pad the note tools operate on.
type NoteKeeper struct {
	Text   string `json:"text"`
	Tool   Tool   `json:"tool"`
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Output string `json:"output"`
}
