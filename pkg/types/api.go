package types

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Overall service status.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Whether the OCR model is loaded and ready.
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Whether an accelerator was detected on this host.
	// example: true
	GPUAvailable bool `json:"gpu_available" example:"true"`
}

// ProgressInfo is the point-in-time progress snapshot returned by GET /progress.
type ProgressInfo struct {
	// Current status: idle, loading, loaded, error, processing.
	// example: loading
	Status string `json:"status" example:"loading"`
	// Free-text stage label (tokenizer, model, gpu, warmup, ocr, queue, ...).
	// example: model
	Stage string `json:"stage" example:"model"`
	// Human-readable description of the current activity.
	Message string `json:"message"`
	// Progress percent 0-100 within the current phase.
	// example: 42
	ProgressPercent int `json:"progress_percent" example:"42"`
	// Characters produced so far by the current generation.
	// example: 1337
	CharsGenerated int `json:"chars_generated" example:"1337"`
	// Accumulated text of the current generation (replaced on each update).
	RawTokenStream string `json:"raw_token_stream"`
	// Unix timestamp of the last update.
	Timestamp int64 `json:"timestamp"`
}

// LoadModelRequest is the optional JSON body of POST /load_model.
type LoadModelRequest struct {
	// Force CPU placement even if an accelerator is available.
	// example: false
	ForceCPU bool `json:"force_cpu,omitempty" example:"false"`
}

// LoadModelResponse is returned by POST /load_model.
type LoadModelResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Model loaded successfully"`
}

// OCRResponse is returned by POST /ocr and POST /ocr_tesseract.
type OCRResponse struct {
	Status string `json:"status" example:"success"`
	// Recognized text (markdown for document conversion).
	Result string `json:"result"`
	// Relative path (under /outputs) of the annotated boxes image, if produced.
	BoxesImagePath string `json:"boxes_image_path,omitempty"`
	// Prompt type actually used after validation.
	// example: document
	PromptType string `json:"prompt_type" example:"document"`
	// Raw generation text scraped from the engine output, if any.
	RawTokens string `json:"raw_tokens,omitempty"`
	// Warning carried through from the engine (e.g., missing language pack).
	Warning string `json:"warning,omitempty"`
}

// PDFPage is one page result inside PDFResponse.
type PDFPage struct {
	// 1-based page number.
	// example: 1
	Page int `json:"page" example:"1"`
	Text string `json:"text"`
	// Relative path of the page's boxes image, if produced.
	BoxesImagePath string `json:"boxes_image_path,omitempty"`
}

// PDFResponse is returned by POST /ocr_pdf.
type PDFResponse struct {
	Status     string    `json:"status" example:"success"`
	PromptType string    `json:"prompt_type" example:"document"`
	Pages      []PDFPage `json:"pages"`
	// Per-page texts joined by a blank line.
	CombinedText string `json:"combined_text"`
}

// BatchItem is one file result inside BatchResponse.
type BatchItem struct {
	// 1-based index in upload order.
	// example: 1
	Index          int    `json:"index" example:"1"`
	Text           string `json:"text"`
	BoxesImagePath string `json:"boxes_image_path,omitempty"`
}

// BatchResponse is returned by POST /ocr_batch.
type BatchResponse struct {
	Status       string      `json:"status" example:"success"`
	PromptType   string      `json:"prompt_type" example:"document"`
	Items        []BatchItem `json:"items"`
	CombinedText string      `json:"combined_text"`
}

// EnqueueResponse is returned by POST /queue/add.
type EnqueueResponse struct {
	Status string `json:"status" example:"success"`
	// IDs assigned to the accepted files, in upload order.
	IDs []int `json:"ids"`
	// Number of files accepted into the queue.
	// example: 3
	Added int `json:"added" example:"3"`
}

// QueueItemView is the redacted per-item view in GET /queue/status.
// Temp paths and raw result text are deliberately omitted.
type QueueItemView struct {
	ID       int    `json:"id" example:"1"`
	Filename string `json:"filename" example:"scan-001.jpg"`
	// pending, processing, completed or failed.
	Status string `json:"status" example:"pending"`
	// Heuristic progress 0-100, capped at 90 until completion.
	Progress int    `json:"progress" example:"40"`
	Error    string `json:"error,omitempty"`
}

// ProcessingItem describes the item currently being processed, if any.
type ProcessingItem struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	// Relative path of the image being processed, for live preview.
	CurrentImagePath string `json:"current_image_path,omitempty"`
	Progress         int    `json:"progress"`
}

// QueueStatusResponse is returned by GET /queue/status.
type QueueStatusResponse struct {
	Status     string          `json:"status" example:"success"`
	Total      int             `json:"total" example:"4"`
	Pending    int             `json:"pending" example:"2"`
	Completed  int             `json:"completed" example:"1"`
	Failed     int             `json:"failed" example:"1"`
	Items      []QueueItemView `json:"items"`
	Processing *ProcessingItem `json:"processing,omitempty"`
}

// DrainItemResult is one item outcome inside DrainSummary.
type DrainItemResult struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	// completed or failed.
	Status string `json:"status" example:"completed"`
	Error  string `json:"error,omitempty"`
	// Output subfolder of this item relative to the drain folder.
	OutputDir string `json:"output_dir,omitempty"`
}

// DrainSummary is returned by POST /queue/process and persisted as
// summary.json inside the drain's output folder.
type DrainSummary struct {
	Status    string            `json:"status" example:"success"`
	Total     int               `json:"total" example:"2"`
	Completed int               `json:"completed" example:"2"`
	Failed    int               `json:"failed" example:"0"`
	OutputDir string            `json:"output_dir" example:"queue_20260823_101500"`
	StartedAt int64             `json:"started_at"`
	EndedAt   int64             `json:"ended_at"`
	Items     []DrainItemResult `json:"items"`
}

// ModelInfoResponse is returned by GET /model_info.
type ModelInfoResponse struct {
	ModelName        string `json:"model_name" example:"deepseek-ai/DeepSeek-OCR"`
	CacheDir         string `json:"cache_dir"`
	ModelLoaded      bool   `json:"model_loaded"`
	GPUAvailable     bool   `json:"gpu_available"`
	GPUName          string `json:"gpu_name,omitempty"`
	DevicePreference string `json:"device_preference" example:"auto"`
}

// TTSRequest is the JSON body of POST /tts.
type TTSRequest struct {
	// Text to synthesize.
	Text string `json:"text"`
	// Optional language code; auto-detected from script ranges when empty.
	// example: en
	Language string `json:"language,omitempty" example:"en"`
	// Optional engine: edge or coqui. Autoselected when empty.
	// example: edge
	Engine string `json:"engine,omitempty" example:"edge"`
}

// TTSResponse is returned by POST /tts.
type TTSResponse struct {
	Status string `json:"status" example:"success"`
	// Relative path (under /outputs) of the generated audio file.
	Path     string `json:"path"`
	Voice    string `json:"voice,omitempty" example:"en-US-JennyNeural"`
	Language string `json:"language" example:"en"`
	Engine   string `json:"engine" example:"edge_tts"`
}

// TTSEnginesResponse is returned by GET /tts/engines.
type TTSEnginesResponse struct {
	EdgeTTS   bool `json:"edge_tts"`
	CoquiXTTS bool `json:"coqui_xtts"`
}

// ErrorResponse is the consistent JSON error payload.
type ErrorResponse struct {
	// Always "error".
	Status string `json:"status" example:"error"`
	// Error message.
	// example: No image provided
	Message string `json:"message" example:"No image provided"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
