package dialects

// Generic is the portable fallback dialect used for rendering without a live backend.
var Generic = newBackend("generic", genericKeywords, '"', Question, true)

func init() {
	Register("generic", Generic)
}
