package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type part struct {
	Text     string    `json:"text,omitempty"`
	Inline   *blob     `json:"inline_data,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type blob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	System   *content         `json:"system_instruction,omitempty"`
	Contents []content        `json:"contents"`
	Config   generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

// remoteFile is an uploaded media file
type remoteFile struct {
	Name     string
	URI      string
	MimeType string
	State    string
}

// Gemini talks to the Gemini REST API. The conversation history is kept in
// memory for the life of the client.
type Gemini struct {
	cfg    Config
	client *http.Client

	mu      sync.Mutex
	history []content
}

// NewGemini creates a client, filling unset config with defaults
func NewGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.System == "" {
		cfg.System = def.System
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Gemini{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Send appends text to the conversation and returns the model's reply
func (g *Gemini) Send(ctx context.Context, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	turn := content{Role: "user", Parts: []part{{Text: text}}}
	contents := append(append([]content(nil), g.history...), turn)

	reply, err := g.generate(ctx, contents, true)
	if err != nil {
		return "", err
	}
	g.history = append(contents, content{Role: "model", Parts: []part{{Text: reply}}})
	return reply, nil
}

// Generate asks a one-off question about inline media
func (g *Gemini) Generate(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	contents := []content{{
		Role: "user",
		Parts: []part{
			{Inline: &blob{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
			{Text: prompt},
		},
	}}
	return g.generate(ctx, contents, false)
}

// GenerateFromVideo uploads the clip, waits for processing and asks about it
func (g *Gemini) GenerateFromVideo(ctx context.Context, prompt string, video []byte) (string, error) {
	f, err := g.upload(ctx, "video/mp4", video)
	if err != nil {
		return "", err
	}
	if f, err = g.waitActive(ctx, f); err != nil {
		return "", err
	}
	contents := []content{{
		Role: "user",
		Parts: []part{
			{FileData: &fileData{MimeType: f.MimeType, FileURI: f.URI}},
			{Text: prompt},
		},
	}}
	return g.generate(ctx, contents, false)
}

func (g *Gemini) endpoint(path string) string {
	return g.cfg.BaseURL + path + "?key=" + url.QueryEscape(g.cfg.APIKey)
}

func (g *Gemini) generate(ctx context.Context, contents []content, withPersona bool) (string, error) {
	req := generateRequest{
		Contents: contents,
		Config:   generationConfig{Temperature: g.cfg.Temperature},
	}
	if withPersona {
		req.System = &content{Parts: []part{{Text: g.cfg.System}}}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := g.post(ctx, g.endpoint("/v1beta/models/"+g.cfg.Model+":generateContent"), "application/json", body, nil)
	if err != nil {
		return "", err
	}

	var texts []string
	for _, t := range gjson.GetBytes(resp, "candidates.0.content.parts.#.text").Array() {
		texts = append(texts, t.String())
	}
	if len(texts) == 0 {
		reason := gjson.GetBytes(resp, "promptFeedback.blockReason").String()
		return "", fmt.Errorf("%w: no text in reply (block reason %q)", ErrAPI, reason)
	}
	log.Debugf("generateContent answered in %v", time.Since(start))
	return strings.Join(texts, ""), nil
}

// post sends a request and returns the body of a 2xx reply
func (g *Gemini) post(ctx context.Context, u, contentType string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	_, data, err := g.roundTrip(req)
	return data, err
}

func (g *Gemini) roundTrip(req *http.Request) (*http.Response, []byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading reply: %w", ErrAPI, err)
	}
	if resp.StatusCode/100 != 2 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, nil, fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, msg)
	}
	return resp, data, nil
}

// upload runs the two step resumable upload and returns the file record
func (g *Gemini) upload(ctx context.Context, mimeType string, data []byte) (remoteFile, error) {
	meta, _ := json.Marshal(map[string]any{"file": map[string]string{"display_name": "clip-" + uuid.NewString()}})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/upload/v1beta/files"), bytes.NewReader(meta))
	if err != nil {
		return remoteFile{}, err
	}
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	req.Header.Set("Content-Type", "application/json")

	resp, _, err := g.roundTrip(req)
	if err != nil {
		return remoteFile{}, fmt.Errorf("upload start: %w", err)
	}
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return remoteFile{}, fmt.Errorf("%w: upload start returned no upload url", ErrAPI)
	}

	header := http.Header{}
	header.Set("X-Goog-Upload-Offset", "0")
	header.Set("X-Goog-Upload-Command", "upload, finalize")
	body, err := g.post(ctx, uploadURL, "", data, header)
	if err != nil {
		return remoteFile{}, fmt.Errorf("upload: %w", err)
	}

	f := parseFile(gjson.GetBytes(body, "file"))
	if f.MimeType == "" {
		f.MimeType = mimeType
	}
	if f.Name == "" {
		return remoteFile{}, fmt.Errorf("%w: upload reply has no file name", ErrAPI)
	}
	log.Debugf("Uploaded %d bytes as %s (%s)", len(data), f.Name, f.State)
	return f, nil
}

// waitActive polls the file until it leaves PROCESSING
func (g *Gemini) waitActive(ctx context.Context, f remoteFile) (remoteFile, error) {
	for f.State == "PROCESSING" {
		log.Debugf("Waiting for %s to be processed", f.Name)
		select {
		case <-ctx.Done():
			return f, ctx.Err()
		case <-time.After(g.cfg.PollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("/v1beta/"+f.Name), nil)
		if err != nil {
			return f, err
		}
		_, body, err := g.roundTrip(req)
		if err != nil {
			return f, err
		}
		next := parseFile(gjson.ParseBytes(body))
		if next.MimeType == "" {
			next.MimeType = f.MimeType
		}
		f = next
	}
	if f.State == "FAILED" {
		return f, fmt.Errorf("%w: %s", ErrMediaFailed, f.Name)
	}
	return f, nil
}

func parseFile(r gjson.Result) remoteFile {
	return remoteFile{
		Name:     r.Get("name").String(),
		URI:      r.Get("uri").String(),
		MimeType: r.Get("mimeType").String(),
		State:    r.Get("state").String(),
	}
}
