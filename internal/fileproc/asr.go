package fileproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// asrMu serialises every ASR call, so concurrent file uploads never run
// whisper.cpp inference at the same time (spec §4.3). Each caller waits its
// turn and receives the transcript of its own audio.
var asrMu sync.Mutex

// transcribeAudio POSTs raw audio bytes to a whisper.cpp server's
// /inference endpoint and returns the transcribed text, using the Arabic
// language hint spec §4.3 requires. Grounded on the teacher's
// pkg/provider/stt/whisper provider's infer/encodeWAV helpers, simplified
// for a one-shot batch file rather than a live streaming session: file
// processing transcribes one complete recording, not a PCM stream with
// silence-triggered flushes.
func (s *Service) transcribeAudio(ctx context.Context, data []byte, mime string) (string, error) {
	asrMu.Lock()
	defer asrMu.Unlock()
	return whisperInfer(ctx, s.deps.WhisperServerURL, data, mime)
}

func whisperInfer(ctx context.Context, serverURL string, data []byte, mime string) (string, error) {
	if serverURL == "" {
		return "", fmt.Errorf("fileproc: no whisper server configured")
	}

	// whisper.cpp's /inference endpoint accepts ffmpeg-decodable formats
	// directly, unlike the live-PCM path which must build its own WAV
	// header (see the teacher's encodeWAV) — file uploads already arrive as
	// complete audio files.
	filename := "audio" + extForMime(mime)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("fileproc: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("fileproc: write audio data: %w", err)
	}
	if err := mw.WriteField("language", "ar"); err != nil {
		return "", fmt.Errorf("fileproc: write language field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("fileproc: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("fileproc: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fileproc: whisper http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fileproc: whisper server returned HTTP %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fileproc: read whisper response: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("fileproc: parse whisper response: %w", err)
	}
	return result.Text, nil
}

func extForMime(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	case "audio/x-m4a", "audio/m4a":
		return ".m4a"
	default:
		return ".wav"
	}
}
