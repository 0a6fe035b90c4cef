package core

import (
	"fmt"
	"mime"
	"strings"

	apperrors "github.com/Skryldev/media-editor/errors"
)

// EditorKind is the closed set of media kinds the dispatcher knows.
type EditorKind int

const (
	KindStaticImage EditorKind = iota + 1
	KindAnimatedImage
	KindVideo
)

func (k EditorKind) String() string {
	switch k {
	case KindStaticImage:
		return "static_image"
	case KindAnimatedImage:
		return "animated_image"
	case KindVideo:
		return "video"
	}
	return fmt.Sprintf("EditorKind(%d)", int(k))
}

// Classify derives the editor kind from a declared MIME type.  Parameters
// such as "; charset=" are ignored.
func Classify(mimeType string) (EditorKind, error) {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	top, sub, ok := strings.Cut(mt, "/")
	if !ok || sub == "" {
		return 0, apperrors.New(apperrors.CategoryUnsupportedMediaKind, "classify",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedMediaKind, mimeType))
	}
	switch top {
	case "image":
		switch sub {
		case "gif", "apng", "vnd.mozilla.apng":
			return KindAnimatedImage, nil
		}
		return KindStaticImage, nil
	case "video":
		return KindVideo, nil
	}
	return 0, apperrors.New(apperrors.CategoryUnsupportedMediaKind, "classify",
		fmt.Errorf("%w: %q", apperrors.ErrUnsupportedMediaKind, mimeType))
}
