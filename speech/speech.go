package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Speaker says text out loud
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Nop discards everything
type Nop struct{}

func (Nop) Say(context.Context, string) error { return nil }

// Clean removes markdown emphasis so it is not read out
func Clean(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
}

// Piper pipes text through the piper synthesizer into an audio player.
// Utterances are serialised so replies do not talk over each other.
type Piper struct {
	Synth  []string
	Player []string

	mu sync.Mutex
}

// NewPiper builds the usual piper | aplay pipeline for a voice model
func NewPiper(binary, model string, sampleRate int) *Piper {
	if binary == "" {
		binary = "piper"
	}
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &Piper{
		Synth:  []string{binary, "--model", model, "--output_raw"},
		Player: []string{"aplay", "-q", "-r", strconv.Itoa(sampleRate), "-f", "S16_LE", "-t", "raw", "-c", "1", "-"},
	}
}

func (p *Piper) Say(ctx context.Context, text string) error {
	text = Clean(text)
	if text == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	synth := exec.CommandContext(ctx, p.Synth[0], p.Synth[1:]...)
	synth.Stdin = strings.NewReader(text + "\n")
	player := exec.CommandContext(ctx, p.Player[0], p.Player[1:]...)

	audio, err := synth.StdoutPipe()
	if err != nil {
		return err
	}
	player.Stdin = audio

	if err := synth.Start(); err != nil {
		return fmt.Errorf("starting synthesizer: %w", err)
	}
	if err := player.Start(); err != nil {
		_ = synth.Process.Kill()
		_ = synth.Wait()
		return fmt.Errorf("starting player: %w", err)
	}

	synthErr := synth.Wait()
	playErr := player.Wait()
	if synthErr != nil {
		return fmt.Errorf("synthesizer: %w", synthErr)
	}
	if playErr != nil {
		return fmt.Errorf("player: %w", playErr)
	}
	log.Debugf("Spoke %d characters", len(text))
	return nil
}
