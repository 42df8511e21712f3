package cloudinary

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ProofStore keeps deposit proof screenshots.
type ProofStore interface {
	UploadProof(ctx context.Context, file io.Reader, userID uint) (*Upload, error)
	Delete(ctx context.Context, publicID string) error
}

type Upload struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	PublicID     string `json:"public_id"`
}

const (
	proofFolder = "vipearn/deposits"
	ThumbWidth  = 200
	// Screenshots are resized on upload so admins can review them quickly.
	proofEager = "q_auto,f_auto,w_1080,c_limit"
)

var eagerAsyncFalse = false

// BuildThumbnailURL returns a small optimized rendition of an uploaded image.
func BuildThumbnailURL(cloudName, publicID string, width int) string {
	if width <= 0 {
		width = ThumbWidth
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_fill/%s",
		cloudName, width, publicID)
}

// ProofPublicID names an upload so it groups by user and never collides.
func ProofPublicID(userID uint) string {
	return fmt.Sprintf("%d/proof_%s", userID, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

type client struct {
	cloudName string
	uploader  *uploader.API
}

// NewClient builds a ProofStore from Cloudinary cloud name, API key and secret.
func NewClient(cloudName, apiKey, apiSecret string) (ProofStore, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, errors.Wrap(err, "cloudinary config")
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "cloudinary uploader")
	}
	return &client{cloudName: cloudName, uploader: up}, nil
}

func (c *client) UploadProof(ctx context.Context, file io.Reader, userID uint) (*Upload, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       proofFolder,
		PublicID:     ProofPublicID(userID),
		ResourceType: "image",
		Eager:        proofEager,
		EagerAsync:   &eagerAsyncFalse,
	})
	if err != nil {
		return nil, errors.Wrap(err, "upload proof")
	}
	if result.Error.Message != "" {
		return nil, errors.New(result.Error.Message)
	}
	up := &Upload{URL: result.SecureURL, PublicID: result.PublicID}
	if len(result.Eager) > 0 {
		up.ThumbnailURL = result.Eager[0].SecureURL
	}
	if up.ThumbnailURL == "" {
		up.ThumbnailURL = BuildThumbnailURL(c.cloudName, result.PublicID, ThumbWidth)
	}
	return up, nil
}

func (c *client) Delete(ctx context.Context, publicID string) error {
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return errors.Wrap(err, "delete proof")
}
