package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"kicomport/internal/api"
)

// apiClient is a thin HTTP wrapper over the daemon API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) Upload(path string) (api.UploadResponse, error) {
	var out api.UploadResponse

	file, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return out, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return out, fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return out, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.base+"/api/uploads", &body)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	err = c.do(req, &out)
	return out, err
}

func (c *apiClient) Jobs(statuses string, limit int) ([]api.JobView, error) {
	query := url.Values{}
	if statuses != "" {
		query.Set("status", statuses)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/jobs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var jobs []api.JobView
	err := c.get(path, &jobs)
	return jobs, err
}

func (c *apiClient) Job(id int64) (api.JobDetailView, error) {
	var detail api.JobDetailView
	err := c.get(fmt.Sprintf("/api/jobs/%d", id), &detail)
	return detail, err
}

func (c *apiClient) Select(jobID int64, req api.SelectRequest) error {
	return c.postJSON(fmt.Sprintf("/api/jobs/%d/select", jobID), req, nil)
}

func (c *apiClient) Reset(jobID int64) error {
	return c.postJSON(fmt.Sprintf("/api/jobs/%d/reset", jobID), struct{}{}, nil)
}

func (c *apiClient) Import(jobID int64, renameTo string) (api.ImportResponse, error) {
	var out api.ImportResponse
	err := c.postJSON(fmt.Sprintf("/api/jobs/%d/import", jobID), api.ImportRequest{RenameTo: renameTo}, &out)
	return out, err
}

func (c *apiClient) Health() (api.HealthView, error) {
	var health api.HealthView
	err := c.get("/api/health", &health)
	return health, err
}

func (c *apiClient) Config() (api.ConfigView, error) {
	var view api.ConfigView
	err := c.get("/api/config", &view)
	return view, err
}

func (c *apiClient) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) postJSON(path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.base)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `kicomport daemon`", base)
	}
	return fmt.Errorf("connect to daemon at %s: %w", base, err)
}
