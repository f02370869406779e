package chat

// Image is one attached image in a chat request.
type Image struct {
	// Base64 is the base64-encoded image payload.
	Base64 string `json:"base64"`
}

// Turn is one prior message of the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat invocation as received on stdin. Audio and
// AudioBuffer are aliases; when both are set Audio wins.
type Request struct {
	// Prompt is the user's text input.
	Prompt string `json:"prompt"`

	// Images are optional image attachments.
	Images []Image `json:"images"`

	// Messages is the prior conversation history, oldest first.
	Messages []Turn `json:"messages"`

	// Audio is an optional base64-encoded WAV recording of the user speaking.
	Audio string `json:"audio"`

	// AudioBuffer is an accepted alias for Audio.
	AudioBuffer string `json:"audioBuffer"`

	// HadAudio marks that voice input was already folded into Prompt by an
	// earlier normalization step.
	HadAudio bool `json:"had_audio"`
}

// audio returns the effective audio payload of the request.
func (r *Request) audio() string {
	if r.Audio != "" {
		return r.Audio
	}
	return r.AudioBuffer
}
