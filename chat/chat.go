package chat

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAPI is returned for error replies and replies without text
	ErrAPI = errors.New("generative api error")
	// ErrMediaFailed is returned when an uploaded file fails processing
	ErrMediaFailed = errors.New("media processing failed")
)

// Collaborator is the conversational and vision model the robot talks through
type Collaborator interface {
	// Send continues the persistent conversation
	Send(ctx context.Context, text string) (string, error)
	// Generate asks a one-off question about inline media
	Generate(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
	// GenerateFromVideo uploads an mp4 clip and asks a one-off question about it
	GenerateFromVideo(ctx context.Context, prompt string, video []byte) (string, error)
}

// Persona is the system instruction for the conversation
const Persona = `I want you to behave as though you are a robot arm with audio visual capabilities.
I have connected you to a physical robotic arm so any instructions I tell you, are carried out by the physical arm.
Your text output is played into my living area via Speech to Text.
Your name is Sharkie.
Have a serious tone and don't make robot noises.`

// Config configures the Gemini client
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	Temperature  float64
	System       string
	PollInterval time.Duration
	Timeout      time.Duration
}

// DefaultConfig returns settings for the public Gemini endpoint
func DefaultConfig() Config {
	return Config{
		Model:        "gemini-2.0-flash-exp",
		BaseURL:      "https://generativelanguage.googleapis.com",
		Temperature:  0.5,
		System:       Persona,
		PollInterval: 10 * time.Second,
		Timeout:      2 * time.Minute,
	}
}
