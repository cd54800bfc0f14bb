package submission

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
	"gorm.io/datatypes"
	"p9e.in/siteprogress/models"
)

// Image is one decoded photo of a draft.
type Image struct {
	Name        string
	ContentType string
	Width       int
	Height      int
	Data        []byte
}

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

// DecodeImage checks that data is a JPEG, PNG or WebP and reads its size.
func DecodeImage(name string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, models.NewValidationError("images", "%s is empty", name)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, models.NewValidationError("images", "%s is not a supported image: %v", name, err)
	}
	ct, ok := contentTypes[format]
	if !ok {
		return Image{}, models.NewValidationError("images", "%s: unsupported format %q", name, format)
	}
	return Image{
		Name:        name,
		ContentType: ct,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Data:        append([]byte(nil), data...),
	}, nil
}

// EncodeImages packs every image into the single blob stored on a record.
func EncodeImages(images []Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(images); err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImages unpacks a blob written by EncodeImages.
func DecodeImages(blob []byte) ([]Image, error) {
	var images []Image
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

// Manifest describes images without their bytes.
func Manifest(images []Image) (datatypes.JSON, error) {
	meta := make([]models.ImageMeta, 0, len(images))
	for _, img := range images {
		meta = append(meta, models.ImageMeta{
			Name:        img.Name,
			ContentType: img.ContentType,
			Bytes:       len(img.Data),
			Width:       img.Width,
			Height:      img.Height,
		})
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
