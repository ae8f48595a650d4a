// Command stage uploads a room photo to a running staging server from the
// terminal. It runs the same adaptive preparation step the web client does
// before submitting, so oversized photos are shrunk below the request limit.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"server/internal/imageprep"
)

type stageResponse struct {
	Success          bool   `json:"success"`
	OriginalImageURL string `json:"originalImageUrl"`
	StagedImageURL   string `json:"stagedImageUrl"`
	Description      string `json:"description"`
	Error            string `json:"error"`
	Details          any    `json:"details"`
}

func main() {
	var (
		serverFlag  string
		timeoutFlag time.Duration
	)
	flag.StringVar(&serverFlag, "server", "http://localhost:8080", "Base URL of the staging server")
	flag.DurationVar(&timeoutFlag, "timeout", 5*time.Minute, "Overall request timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: stage [-server URL] [-timeout D] <image path>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read image: %v\n", err)
		os.Exit(1)
	}

	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	prepared, err := imageprep.NewPreparer().Prepare(data, mimeType, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prepare image: %v\n", err)
		os.Exit(1)
	}
	if prepared.Transformed {
		fmt.Fprintf(os.Stderr, "recompressed %s: %d -> %d bytes\n", name, len(data), len(prepared.Data))
	}

	result, err := postStageRoom(strings.TrimRight(serverFlag, "/"), prepared, timeoutFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stage room: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result.Description)
	fmt.Printf("original: %s\n", result.OriginalImageURL)
	fmt.Printf("staged:   %s\n", result.StagedImageURL)
}

func postStageRoom(server string, prepared imageprep.Prepared, timeout time.Duration) (*stageResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="roomImage"; filename=%q`, prepared.Name))
	header.Set("Content-Type", prepared.MIME)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(prepared.Data); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(server+"/api/stage-room", writer.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var decoded stageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Details != nil {
			return nil, fmt.Errorf("%s (status %d): %v", decoded.Error, resp.StatusCode, decoded.Details)
		}
		return nil, fmt.Errorf("%s (status %d)", decoded.Error, resp.StatusCode)
	}
	return &decoded, nil
}
