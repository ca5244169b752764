package constants

// ExtractionMethod selects how text is pulled out of a PDF.
type ExtractionMethod string

const (
	MethodPopplerUtils ExtractionMethod = "popplerUtils"
	MethodTextOnly     ExtractionMethod = "textOnly"   // reserved
	MethodWithLayout   ExtractionMethod = "withLayout" // reserved
)

// APIMethod is the sub-path used against the summarization backend.
type APIMethod string

const (
	APIGenerate APIMethod = "generate"
	APIChat     APIMethod = "chat"
)

// Provider selects the summarization client implementation.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// DefaultOllamaEndpoint is the local Ollama server address.
const DefaultOllamaEndpoint = "http://localhost:11434"

// Well-known record field names shared between stages.
const (
	FieldText               = "text"
	FieldFilePath           = "filePath"
	FieldSuccess            = "success"
	FieldError              = "error"
	FieldRawText            = "rawText"
	FieldExtractionMetadata = "extractionMetadata"
	FieldSummary            = "summary"
	FieldModelInfo          = "modelInfo"
	FieldInputData          = "inputData"
)
