package ebay

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MaxUploadBytes is eBay's cap on publish-time image uploads. Smaller than
// the pipeline's model-call limit, so an image that analyzed fine may still
// need shrinking before upload.
const MaxUploadBytes = 12 * 1024 * 1024

type imageUploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// UploadImage uploads one image to eBay Picture Services and returns its
// hosted URL. It first tries the multipart form path and falls back to a raw
// binary body, which some picture-service deployments require.
func (c *Client) UploadImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if int64(len(data)) > MaxUploadBytes {
		return "", fmt.Errorf("image exceeds the %dMB upload limit", MaxUploadBytes/(1024*1024))
	}

	result := &imageUploadResponse{}
	req, err := c.req(ctx, result)
	if err != nil {
		return "", err
	}
	_, err = handleError(req.
		SetFileReader("image", "image", bytes.NewReader(data)).
		Post("/commerce/media/v1_beta/image/upload"))
	if err == nil {
		return result.ImageURL, nil
	}

	log.Warn().Err(err).Msg("multipart image upload failed, retrying with binary body")

	result = &imageUploadResponse{}
	req, rerr := c.req(ctx, result)
	if rerr != nil {
		return "", rerr
	}
	_, rerr = handleError(req.
		SetHeader("Content-Type", mimeType).
		SetBody(data).
		Post("/commerce/media/v1_beta/image/upload"))
	if rerr != nil {
		return "", fmt.Errorf("image upload failed on both paths: %w", rerr)
	}
	return result.ImageURL, nil
}
