package zimagegen

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/url"
)

type ImageType string

const (
	ImageInput  = ImageType("input")
	ImageTemp   = ImageType("temp")
	ImageOutput = ImageType("output")
)

// ImageRef locates an image on the server, as reported by a job's history
// record.
type ImageRef struct {
	Filename  string    `json:"filename"`
	Subfolder string    `json:"subfolder"`
	Type      ImageType `json:"type"`
}

func (r ImageRef) setURL(vals url.Values) {
	vals.Set("filename", r.Filename)
	if r.Subfolder != "" {
		vals.Set("subfolder", r.Subfolder)
	}
	vals.Set("type", string(r.Type))
}

// AnnotatedPath returns the annotated path accepted by image load nodes.
func (r ImageRef) AnnotatedPath() string {
	if r.Subfolder != "" {
		return fmt.Sprintf("%s/%s [%s]", r.Subfolder, r.Filename, r.Type)
	}
	return fmt.Sprintf("%s [%s]", r.Filename, r.Type)
}

// GetImageFile fetches the raw image bytes from the server's view endpoint.
func (c *Client) GetImageFile(ctx context.Context, ref ImageRef) (io.ReadCloser, error) {
	vals := make(url.Values)
	ref.setURL(vals)
	return c.get(ctx, "/view?"+vals.Encode())
}

// GetImage fetches and decodes a generated image. The server writes PNG.
func (c *Client) GetImage(ctx context.Context, ref ImageRef) (image.Image, error) {
	rc, err := c.GetImageFile(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return png.Decode(rc)
}
