package types

// OCRParams are the geometry/prompt parameters fixed per request or per
// queue item at enqueue time.
//
// Model size presets used by the engine:
//   - Tiny:   base_size=512,  image_size=512,  crop_mode=false
//   - Small:  base_size=640,  image_size=640,  crop_mode=false
//   - Base:   base_size=1024, image_size=1024, crop_mode=false
//   - Large:  base_size=1280, image_size=1280, crop_mode=false
//   - Gundam (recommended): base_size=1024, image_size=640, crop_mode=true
type OCRParams struct {
	// Prompt type selecting the instruction and result filename convention.
	// example: document
	PromptType string `json:"prompt_type" example:"document"`
	// Base canvas size in pixels.
	// example: 1024
	BaseSize int `json:"base_size" example:"1024"`
	// Image tile size in pixels.
	// example: 640
	ImageSize int `json:"image_size" example:"640"`
	// Whether the engine may crop the input into tiles.
	// example: true
	CropMode bool `json:"crop_mode" example:"true"`
}
