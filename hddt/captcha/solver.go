package captcha

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "hddt.captcha")

// SolverClient talks to the external captcha decode service: raster image
// in, decoded text out. The service itself is an opaque network contract.
type SolverClient struct {
	rest   *resty.Client
	apiKey string
}

type solveRequest struct {
	Image  string `json:"image_base64"`
	APIKey string `json:"api_key,omitempty"`
}

type solveResponse struct {
	CaptchaText string `json:"captcha_text"`
	Message     string `json:"message"`
}

func NewSolverClient(baseURL, apiKey string) *SolverClient {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &SolverClient{rest: rest, apiKey: apiKey}
}

// Decode submits a rasterized challenge and returns the decoded text.
func (s *SolverClient) Decode(ctx context.Context, image []byte) (string, error) {
	var result solveResponse

	resp, err := s.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(solveRequest{
			Image:  base64.StdEncoding.EncodeToString(image),
			APIKey: s.apiKey,
		}).
		SetResult(&result).
		Post("/decode")
	if err != nil {
		return "", fmt.Errorf("captcha decode request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("captcha decode service status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.CaptchaText == "" {
		return "", fmt.Errorf("captcha decode service returned empty text: %s", result.Message)
	}

	logger.WithField("length", len(result.CaptchaText)).Debug("captcha decoded")
	return result.CaptchaText, nil
}
