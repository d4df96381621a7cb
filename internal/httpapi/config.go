package httpapi

// maxBodyBytes limits JSON request bodies.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes configures the JSON body limit; n <= 0 restores the default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// maxUploadBytes limits multipart uploads (images, PDFs, batches).
var maxUploadBytes int64 = 100 << 20

// SetMaxUploadBytes configures the multipart upload limit; n <= 0 restores
// the default.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 100 << 20
		return
	}
	maxUploadBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
