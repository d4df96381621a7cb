// Package ocr is the inference dispatcher: it resolves prompt types, runs
// single-shot, PDF and batch recognitions against the engine runtime, and
// locates result artifacts by filename convention.
package ocr

// Prompt type names. Unknown values resolve to PromptDocument.
const (
	PromptDocument  = "document"
	PromptOCR       = "ocr"
	PromptFree      = "free"
	PromptFigure    = "figure"
	PromptDescribe  = "describe"
	PromptTesseract = "tesseract"
)

// BoxesFile is the annotated image the engine writes next to the result
// when grounding boxes were produced.
const BoxesFile = "result_with_boxes.jpg"

// noResultPlaceholder is returned when the engine finished without writing
// any text-like file. Absence of a result is not an error.
const noResultPlaceholder = "OCR completed but no text file was generated"

// promptConfig pairs the engine instruction with the filename the engine
// writes the result under for that instruction.
type promptConfig struct {
	prompt     string
	resultFile string
}

var promptConfigs = map[string]promptConfig{
	PromptDocument: {
		prompt:     "<image>\n<|grounding|>Convert the document to markdown. ",
		resultFile: "result.mmd",
	},
	PromptOCR: {
		prompt:     "<image>\n<|grounding|>OCR this image. ",
		resultFile: "result.txt",
	},
	PromptFree: {
		prompt:     "<image>\nFree OCR. ",
		resultFile: "result.txt",
	},
	PromptFigure: {
		prompt:     "<image>\nParse the figure. ",
		resultFile: "result.txt",
	},
	PromptDescribe: {
		prompt:     "<image>\nDescribe this image in detail. ",
		resultFile: "result.txt",
	},
}

// resolvePrompt maps a requested prompt type to its configuration. Unknown
// (or tesseract, which has no engine prompt) falls back to document.
func resolvePrompt(promptType string) (string, promptConfig) {
	if cfg, ok := promptConfigs[promptType]; ok {
		return promptType, cfg
	}
	return PromptDocument, promptConfigs[PromptDocument]
}

// ResultFileFor returns the conventional result filename for a prompt type.
func ResultFileFor(promptType string) string {
	if promptType == PromptTesseract {
		return "result.txt"
	}
	_, cfg := resolvePrompt(promptType)
	return cfg.resultFile
}
