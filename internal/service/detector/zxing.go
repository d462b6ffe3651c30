package detector

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXingDecoder decodes QR codes with gozxing.
type ZXingDecoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewZXingDecoder creates a decoder restricted to QR codes.
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER:       true,
			gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
		},
	}
}

// Decode returns at most one payload. No code in the image is an empty result.
func (z *ZXingDecoder) Decode(img image.Image) ([]Payload, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to get binary bitmap: %w", err)
	}

	// QRCodeReader keeps no state between calls but is cheap to create.
	result, err := qrcode.NewQRCodeReader().Decode(bmp, z.hints)
	if err != nil {
		var notFound gozxing.NotFoundException
		if errors.As(err, &notFound) {
			return []Payload{}, nil
		}
		return nil, fmt.Errorf("failed to decode QR code: %w", err)
	}

	text := result.GetText()
	return []Payload{{
		Text:     text,
		Format:   result.GetBarcodeFormat().String(),
		Readable: text != "",
	}}, nil
}
