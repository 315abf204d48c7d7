// Package dnanexus is a thin JSON client for the subset of the DNAnexus API
// the pipeline drives: object discovery, folder organisation, file transfer
// and app execution.
package dnanexus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
)

const defaultAPIURL = "https://api.dnanexus.com"

type Client struct {
	log     *slog.Logger
	http    *http.Client
	apiURL  string
	token   string
	project string
}

func NewClient(log *slog.Logger, token, project string) *Client {
	return &Client{
		log:     log,
		http:    &http.Client{Timeout: 2 * time.Minute},
		apiURL:  defaultAPIURL,
		token:   token,
		project: project,
	}
}

// link is the $dnanexus_link wrapper job inputs are expressed in.
type link struct {
	Link string `json:"$dnanexus_link"`
}

// call POSTs input to an API route and decodes the response into output.
func (c *Client) call(ctx context.Context, route string, input, output any) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.apiURL+"/"+route,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned %s: %s", route, resp.Status, data)
	}

	if output == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(output); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", route, err)
	}

	return nil
}

// FindDataObjects lists files created in the project after the given time.
func (c *Client) FindDataObjects(ctx context.Context, createdAfter time.Time) ([]domain.InputFile, error) {
	input := map[string]any{
		"class":    "file",
		"scope":    map[string]any{"project": c.project},
		"created":  map[string]any{"after": createdAfter.UnixMilli()},
		"describe": map[string]any{"fields": map[string]bool{"name": true}},
	}

	var output struct {
		Results []struct {
			ID       string `json:"id"`
			Describe struct {
				Name string `json:"name"`
			} `json:"describe"`
		} `json:"results"`
	}

	if err := c.call(ctx, "system/findDataObjects", input, &output); err != nil {
		return nil, err
	}

	files := make([]domain.InputFile, 0, len(output.Results))
	for _, result := range output.Results {
		files = append(files, domain.InputFile{
			ID:   result.ID,
			Name: result.Describe.Name,
		})
	}

	return files, nil
}

// FindExecutions lists executions of the given app created after the given
// time, described.
func (c *Client) FindExecutions(ctx context.Context, appID string, createdAfter time.Time) ([]*domain.JobDescription, error) {
	input := map[string]any{
		"class":      "job",
		"executable": appID,
		"project":    c.project,
		"created":    map[string]any{"after": createdAfter.UnixMilli()},
		"describe":   true,
	}

	var output struct {
		Results []struct {
			ID       string      `json:"id"`
			Describe jobDescribe `json:"describe"`
		} `json:"results"`
	}

	if err := c.call(ctx, "system/findExecutions", input, &output); err != nil {
		return nil, err
	}

	descriptions := make([]*domain.JobDescription, 0, len(output.Results))
	for _, result := range output.Results {
		descriptions = append(descriptions, result.Describe.toDomain(result.ID))
	}

	return descriptions, nil
}

// NewFolder creates folder in the project, with parents.
func (c *Client) NewFolder(ctx context.Context, folder string) error {
	input := map[string]any{"folder": folder, "parents": true}

	return c.call(ctx, c.project+"/newFolder", input, nil)
}

// MoveFile moves an existing platform file into folder.
func (c *Client) MoveFile(ctx context.Context, fileID, folder string) error {
	input := map[string]any{
		"objects":     []string{fileID},
		"destination": folder,
	}

	return c.call(ctx, c.project+"/move", input, nil)
}

// Submit runs the workbook app for one sample. The job is named after the
// referral id so the monitor and check-jobs mode can key results by sample.
func (c *Client) Submit(ctx context.Context, request *domain.JobRequest) (*domain.JobHandle, error) {
	inputs := make(map[string]link, len(request.Inputs))
	for name, fileID := range request.Inputs {
		inputs[name] = link{Link: fileID}
	}

	input := map[string]any{
		"project": c.project,
		"name":    request.ReferralID,
		"folder":  request.OutputFolder,
		"input":   inputs,
	}

	var output struct {
		ID string `json:"id"`
	}

	if err := c.call(ctx, request.AppID+"/run", input, &output); err != nil {
		return nil, err
	}

	return &domain.JobHandle{
		ID:      output.ID,
		Name:    request.ReferralID,
		Project: c.project,
		Folder:  request.OutputFolder,
	}, nil
}

type jobDescribe struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Output struct {
		Workbook *link `json:"workbook"`
	} `json:"output"`
}

func (d jobDescribe) toDomain(jobID string) *domain.JobDescription {
	description := &domain.JobDescription{
		ID:    jobID,
		Name:  d.Name,
		State: domain.JobState(d.State),
	}
	if d.Output.Workbook != nil {
		description.OutputFileID = d.Output.Workbook.Link
	}

	return description
}

// Describe fetches the state and output of a job.
func (c *Client) Describe(ctx context.Context, jobID string) (*domain.JobDescription, error) {
	var output jobDescribe

	if err := c.call(ctx, jobID+"/describe", map[string]any{}, &output); err != nil {
		return nil, err
	}

	return output.toDomain(jobID), nil
}

// DescribeFile returns the name of a platform file.
func (c *Client) DescribeFile(ctx context.Context, fileID string) (string, error) {
	input := map[string]any{"project": c.project}

	var output struct {
		Name string `json:"name"`
	}

	if err := c.call(ctx, fileID+"/describe", input, &output); err != nil {
		return "", err
	}

	return output.Name, nil
}
